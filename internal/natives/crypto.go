package natives

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/spiderscript/spiderscript/internal/ffi"
	"github.com/spiderscript/spiderscript/internal/ssvalue"
	"github.com/spiderscript/spiderscript/internal/sstypes"
)

// RegisterCrypto installs password hashing (bcrypt) and Ed25519
// signing/verification as free functions under the crypto@ namespace.
func RegisterCrypto(variant *ffi.Variant) {
	variant.RegisterFunc("crypto@hashPassword",
		sstypes.FuncProto{Return: sstypes.StringType, Args: []sstypes.Ref{sstypes.StringType}},
		func(args []ssvalue.Value) (ssvalue.Value, error) {
			hash, err := bcrypt.GenerateFromPassword([]byte(args[0].Str()), bcrypt.DefaultCost)
			if err != nil {
				return ssvalue.Null(), fmt.Errorf("hashPassword: %w", err)
			}
			return ssvalue.NewString(string(hash)), nil
		})

	variant.RegisterFunc("crypto@checkPassword",
		sstypes.FuncProto{Return: sstypes.BoolType, Args: []sstypes.Ref{sstypes.StringType, sstypes.StringType}},
		func(args []ssvalue.Value) (ssvalue.Value, error) {
			err := bcrypt.CompareHashAndPassword([]byte(args[0].Str()), []byte(args[1].Str()))
			return ssvalue.NewBool(err == nil), nil
		})

	variant.RegisterFunc("crypto@generateKeypair",
		sstypes.FuncProto{Return: sstypes.StringType},
		func(args []ssvalue.Value) (ssvalue.Value, error) {
			_, priv, err := ed25519.GenerateKey(nil)
			if err != nil {
				return ssvalue.Null(), fmt.Errorf("generateKeypair: %w", err)
			}
			return ssvalue.NewString(hex.EncodeToString(priv)), nil
		})

	variant.RegisterFunc("crypto@sign",
		sstypes.FuncProto{Return: sstypes.StringType, Args: []sstypes.Ref{sstypes.StringType, sstypes.StringType}},
		func(args []ssvalue.Value) (ssvalue.Value, error) {
			priv, err := hex.DecodeString(args[0].Str())
			if err != nil || len(priv) != ed25519.PrivateKeySize {
				return ssvalue.Null(), fmt.Errorf("sign: invalid private key")
			}
			sig := ed25519.Sign(ed25519.PrivateKey(priv), []byte(args[1].Str()))
			return ssvalue.NewString(hex.EncodeToString(sig)), nil
		})

	variant.RegisterFunc("crypto@verify",
		sstypes.FuncProto{Return: sstypes.BoolType, Args: []sstypes.Ref{sstypes.StringType, sstypes.StringType, sstypes.StringType}},
		func(args []ssvalue.Value) (ssvalue.Value, error) {
			priv, err := hex.DecodeString(args[0].Str())
			if err != nil || len(priv) != ed25519.PrivateKeySize {
				return ssvalue.NewBool(false), nil
			}
			pub := ed25519.PrivateKey(priv).Public().(ed25519.PublicKey)
			sig, err := hex.DecodeString(args[2].Str())
			if err != nil {
				return ssvalue.NewBool(false), nil
			}
			return ssvalue.NewBool(ed25519.Verify(pub, []byte(args[1].Str()), sig)), nil
		})
}
