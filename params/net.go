package params

type ListenerConfig struct {
	// Network is "tcp", "tcp4", "tcp6" or "unix".
	Network string
	Address string
}
