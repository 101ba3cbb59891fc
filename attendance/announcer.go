package attendance

import "log"

// Announcer is the seam where spoken feedback leaves the controller. The
// desk application wires a text-to-speech engine here; the backend ships a
// logging implementation.
type Announcer interface {
	Announce(text string)
}

// LogAnnouncer writes announcements to the process log.
type LogAnnouncer struct{}

func (LogAnnouncer) Announce(text string) {
	log.Printf("announce: %s", text)
}
