package realtime

// Named realtime streams.
const (
	StreamLoading = "loading"
	StreamBackups = "backups"
)

// DefaultStreams lists the streams a client joins when it names none.
var DefaultStreams = []string{StreamLoading, StreamBackups}

// Broadcaster is the publishing side of the hub, as seen by services.
type Broadcaster interface {
	BroadcastStream(stream string, message Message)
}
