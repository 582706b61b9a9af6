package compile

import "github.com/forgebuild/forge/src/core"

// TypeSource is a {c,cxx} translation unit: a plain file on disk that
// participates as the compile rule's primary input.
var TypeSource = &core.TargetType{Name: "source", Parent: core.TypeFile}

// TypeHeader is a header included by a translation unit, whether it
// already exists on disk or is still to be generated by some other rule.
// RegisterTypes maps the extensions h, hh, hxx and hpp to it; a discovered
// header with any other extension resolves to core.TypeFile instead (see
// Registry.TypeForExtension), not to TypeHeader.
// A project wanting generated headers registers its own TargetType with
// Parent: TypeHeader so selectRule tries its generating rule before
// falling back to HeaderRule.
var TypeHeader = &core.TargetType{Name: "header", Parent: core.TypeFile}

// TypeObj is a compiled object file, the compile rule's output (spec
// §4.G's "obj{e,a,s}" family, collapsed to one type since the variant only
// affects the output extension, not the dependency graph shape).
var TypeObj = &core.TargetType{Name: "obj", Parent: core.TypeFile}

// RegisterTypes installs the compile package's target types on reg, along
// with the file-extension associations spec §4.G's enter_header resolution
// step needs ("target-type is picked by matching the extension against
// the per-scope extension map").
func RegisterTypes(reg *core.Registry) {
	reg.Register(TypeSource, "c", "cc", "cxx", "cpp")
	reg.Register(TypeHeader, "h", "hh", "hxx", "hpp")
	reg.Register(TypeObj)
}
