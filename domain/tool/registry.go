package tool

// Registry defines tool registration and lookup for the catalog.
// Implementations live in infrastructure.
type Registry interface {
	// Register adds a tool to the catalog.
	Register(tool Tool) error

	// Get retrieves a tool by name.
	Get(name string) (Tool, bool)

	// List returns all registered tools sorted by name.
	List() []Tool

	// Names returns all registered tool names sorted.
	Names() []string

	// Has checks if a tool is registered.
	Has(name string) bool
}
