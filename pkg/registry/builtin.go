package registry

import (
	"embed"
	"io/fs"
)

//go:embed models
var builtinFS embed.FS

// Builtin returns a repository holding the models shipped with the module.
func Builtin(opts ...Option) (*MemoryRepository, error) {
	r := NewMemoryRepository(opts...)
	sub, err := fs.Sub(builtinFS, "models")
	if err != nil {
		return nil, err
	}
	if err := r.LoadFS(sub); err != nil {
		return nil, err
	}
	return r, nil
}
