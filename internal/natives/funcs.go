package natives

import (
	"math/bits"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/spiderscript/spiderscript/internal/ffi"
	"github.com/spiderscript/spiderscript/internal/ssvalue"
	"github.com/spiderscript/spiderscript/internal/sstypes"
)

// RegisterStdlib installs small free functions that every variant gets
// regardless of which classes it wires in: UUID generation, human-readable
// formatting, and a bit-rotation helper.
func RegisterStdlib(variant *ffi.Variant) {
	variant.RegisterFunc("std@uuid4",
		sstypes.FuncProto{Return: sstypes.StringType},
		func(args []ssvalue.Value) (ssvalue.Value, error) {
			return ssvalue.NewString(uuid.NewString()), nil
		})

	variant.RegisterFunc("std@humanizeBytes",
		sstypes.FuncProto{Return: sstypes.StringType, Args: []sstypes.Ref{sstypes.IntType}},
		func(args []ssvalue.Value) (ssvalue.Value, error) {
			return ssvalue.NewString(humanize.Bytes(uint64(args[0].Int()))), nil
		})

	variant.RegisterFunc("std@humanizeComma",
		sstypes.FuncProto{Return: sstypes.StringType, Args: []sstypes.Ref{sstypes.IntType}},
		func(args []ssvalue.Value) (ssvalue.Value, error) {
			return ssvalue.NewString(humanize.Comma(args[0].Int())), nil
		})

	variant.RegisterFunc("std@rotl",
		sstypes.FuncProto{Return: sstypes.IntType, Args: []sstypes.Ref{sstypes.IntType, sstypes.IntType}},
		func(args []ssvalue.Value) (ssvalue.Value, error) {
			return ssvalue.NewInt(int64(bits.RotateLeft64(uint64(args[0].Int()), int(args[1].Int()&63)))), nil
		})
}
