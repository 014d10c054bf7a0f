package transfer

// a function that creates a back-end instance
type Provider func() (Manager, error)

// registered back-end providers, identified by their short names
var allProviders = make(map[string]Provider)

// back-end instances created previously
var allManagers = make(map[string]Manager)

// Registers a back-end provider under the given short name. The name is
// persisted in transfer rows, so it must remain stable across releases.
func RegisterProvider(name string, provider Provider) error {
	if _, found := allProviders[name]; found {
		return &AlreadyRegisteredError{Name: name}
	}
	allProviders[name] = provider
	return nil
}

// Creates a back-end with the given registered name, or returns an existing
// instance.
func NewManager(name string) (Manager, error) {
	// do we have one of these already?
	manager, found := allManagers[name]
	if !found {
		provider, ok := allProviders[name]
		if !ok {
			return nil, &NotRegisteredError{Name: name}
		}
		var err error
		manager, err = provider()
		if err != nil {
			return nil, err
		}

		// stash it
		allManagers[name] = manager
	}
	return manager, nil
}

// Removes all registered providers and instances (used in testing).
func ResetRegistry() {
	allProviders = make(map[string]Provider)
	allManagers = make(map[string]Manager)
}
