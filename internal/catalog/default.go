package catalog

import (
	_ "embed"
	"fmt"
)

//go:embed default.yaml
var defaultCatalog []byte

// Default returns the built-in two-faction catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("built-in catalog is invalid: %v", err))
	}
	return c
}
