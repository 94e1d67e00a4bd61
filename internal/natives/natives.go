package natives

import "github.com/spiderscript/spiderscript/internal/ffi"

// RegisterAll wires every native class and function this dialect ships
// with onto variant. Callers that want a narrower surface (e.g. a
// sandboxed embedding with no database access) can call the individual
// Register* functions directly instead.
func RegisterAll(variant *ffi.Variant) error {
	if err := RegisterDatabase(variant); err != nil {
		return err
	}
	if err := RegisterSocket(variant); err != nil {
		return err
	}
	RegisterCrypto(variant)
	RegisterStdlib(variant)
	return nil
}
