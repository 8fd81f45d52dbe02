package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-kaiwa/internal/log"
	"github.com/teslashibe/go-kaiwa/pkg/tts"
	"github.com/teslashibe/go-kaiwa/pkg/wav"
)

func newSynthCmd(opts *rootOptions) *cobra.Command {
	var (
		text  string
		voice string
		out   string
	)

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Synthesize text once and write a WAV file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			defer log.Close()

			client, err := tts.NewFishSpeech(
				tts.WithBaseURL(cfg.Synthesis.BaseURL),
				tts.WithReference(voice),
				tts.WithNormalize(cfg.Synthesis.Normalize),
				tts.WithTimeout(cfg.Synthesis.Timeout),
				tts.WithLogger(log.L()),
			)
			if err != nil {
				return err
			}
			defer client.Close()

			frame, err := client.Synthesize(cmd.Context(), text)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, wav.EncodeFrame(frame), 0o644); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d Hz, %d channel(s), %d-bit, %s\n",
				out, frame.SampleRate, frame.Channels, frame.BitsPerSample, frame.Duration())
			return nil
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "text to synthesize")
	cmd.Flags().StringVar(&voice, "voice", "", "reference id of the voice")
	cmd.Flags().StringVarP(&out, "out", "o", "out.wav", "output WAV file")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}
