package hub

// Selection is a persona together with the voice it speaks with.
type Selection struct {
	Name  string
	Voice string
}

// registration is a register request; done is closed once the member is
// visible to persona switches.
type registration struct {
	member Member
	done   chan struct{}
}

// switchRequest asks the loop to change the active persona; done receives
// the number of sessions switched.
type switchRequest struct {
	selection Selection
	done      chan int
}
