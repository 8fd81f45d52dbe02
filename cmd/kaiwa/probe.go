package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-kaiwa/pkg/protocol"
)

type probeResult struct {
	Text     string
	Emotion  int
	Chunks   int
	Bytes    int
	Error    string
	Duration time.Duration
}

func newProbeCmd() *cobra.Command {
	var (
		url     string
		text    string
		out     string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Send one utterance to a running server and report the reply",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var audio io.Writer = io.Discard
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				audio = f
			}

			res, err := probe(url, text, timeout, audio)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if res.Error != "" {
				fmt.Fprintf(w, "error: %s\n", res.Error)
				return errors.New("server reported an error")
			}
			fmt.Fprintf(w, "reply:   %s\n", res.Text)
			fmt.Fprintf(w, "emotion: %d\n", res.Emotion)
			fmt.Fprintf(w, "audio:   %d chunks, %d bytes in %s\n", res.Chunks, res.Bytes, res.Duration.Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "ws://localhost:8000/speech", "speech websocket URL")
	cmd.Flags().StringVar(&text, "text", "こんにちは", "utterance to send")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write received audio bytes to this file")
	cmd.Flags().DurationVar(&timeout, "timeout", 60*time.Second, "give up after this long")
	return cmd
}

// probe runs one exchange. Binary frames are copied to audio verbatim.
func probe(url, text string, timeout time.Duration, audio io.Writer) (*probeResult, error) {
	start := time.Now()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	defer conn.Close()

	payload, err := json.Marshal(protocol.ClientMessage{Text: text})
	if err != nil {
		return nil, err
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}
	_ = conn.SetReadDeadline(start.Add(timeout))

	res := &probeResult{}
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}
		if msgType == websocket.BinaryMessage {
			if _, err := audio.Write(data); err != nil {
				return nil, err
			}
			res.Chunks++
			res.Bytes += len(data)
			continue
		}

		msg, err := protocol.ParseServerMessage(data)
		if err != nil {
			return nil, err
		}
		switch msg.Type {
		case protocol.TypeMetadata:
			res.Text = msg.Text
			if msg.Emotion != nil {
				res.Emotion = *msg.Emotion
			}
		case protocol.TypeError:
			res.Error = msg.Message
			res.Duration = time.Since(start)
			return res, nil
		case protocol.TypeEnd:
			res.Duration = time.Since(start)
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return res, nil
		}
	}
}
