package treestore

import (
	"github.com/dop251/goja"
	"github.com/duke-git/lancet/v2/convertor"
	"github.com/duke-git/lancet/v2/cryptor"
	"github.com/duke-git/lancet/v2/datetime"
	"github.com/duke-git/lancet/v2/mathutil"
	"github.com/duke-git/lancet/v2/random"
	"github.com/duke-git/lancet/v2/slice"
	"github.com/duke-git/lancet/v2/strutil"
	"github.com/samber/lo"
)

// lancetBinds installs a $lancet helper object into the subscriber runtime.
func lancetBinds(vm *goja.Runtime) {
	obj := vm.NewObject()
	vm.Set("$lancet", obj)

	// String utilities
	obj.Set("camelCase", strutil.CamelCase)
	obj.Set("snakeCase", strutil.SnakeCase)
	obj.Set("kebabCase", strutil.KebabCase)
	obj.Set("capitalize", strutil.Capitalize)
	obj.Set("reverseStr", strutil.Reverse)
	obj.Set("pad", strutil.Pad)

	// Math utilities
	obj.Set("average", mathutil.Average[float64])
	obj.Set("max", mathutil.Max[float64])
	obj.Set("min", mathutil.Min[float64])
	obj.Set("sum", mathutil.Sum[float64])
	obj.Set("abs", mathutil.Abs[float64])

	// Slice utilities
	obj.Set("contain", slice.Contain[any])
	obj.Set("chunk", slice.Chunk[any])
	obj.Set("unique", slice.Unique[any])
	obj.Set("reverse", slice.Reverse[any])

	// Conversion, hashing, time, randomness
	obj.Set("toString", convertor.ToString)
	obj.Set("sha256", cryptor.Sha256)
	obj.Set("md5", cryptor.Md5String)
	obj.Set("formatTime", datetime.FormatTimeToStr)
	obj.Set("randString", random.RandString)
}

// loBinds installs a $lo helper object into the subscriber runtime.
func loBinds(vm *goja.Runtime) {
	obj := vm.NewObject()
	vm.Set("$lo", obj)

	obj.Set("filter", func(s []any, predicate func(any, int) bool) []any {
		return lo.Filter(s, predicate)
	})
	obj.Set("map", func(s []any, mapper func(any, int) any) []any {
		return lo.Map(s, mapper)
	})
	obj.Set("reduce", func(s []any, reducer func(any, any, int) any, initial any) any {
		return lo.Reduce(s, reducer, initial)
	})
	obj.Set("uniq", func(s []any) []any {
		return lo.Uniq(s)
	})
	obj.Set("chunk", func(s []any, size int) [][]any {
		return lo.Chunk(s, size)
	})
	obj.Set("keys", func(m map[string]any) []string {
		return lo.Keys(m)
	})
	obj.Set("values", func(m map[string]any) []any {
		return lo.Values(m)
	})
}
