package params

import "os"

type WebDaemonConfig struct {
	ListenerConfig

	// Token guards the ingest routes (POST /position, POST /motion).
	// Empty allows all requests.
	Token string
}

func DefaultWebListenerConfig() ListenerConfig {
	return ListenerConfig{
		Network: "tcp",
		Address: "localhost:3000",
	}
}

func DefaultWebDaemonConfig() *WebDaemonConfig {
	return &WebDaemonConfig{
		ListenerConfig: DefaultWebListenerConfig(),
		Token:          os.Getenv("CATDRIVE_TOKEN"),
	}
}

func DefaultTestWebDaemonConfig() *WebDaemonConfig {
	return &WebDaemonConfig{
		ListenerConfig: ListenerConfig{
			Network: "tcp",
			Address: "localhost:3333",
		},
	}
}
