package recipe

import "github.com/forgebuild/forge/src/core"

// TypeOutput is an ad-hoc buildscript rule's output target (spec §4.H).
// Unlike compile's obj{} family, an ad-hoc recipe's output has no fixed
// extension to derive a type from, so a project registering a recipe rule
// for a given output typically gives that target its own more specific
// TargetType with Parent: TypeOutput, the same way compile's TypeHeader
// expects a project-specific child type for generated headers.
var TypeOutput = &core.TargetType{Name: "recipe-output", Parent: core.TypeFile}

// RegisterTypes installs TypeOutput on reg.
func RegisterTypes(reg *core.Registry) {
	reg.Register(TypeOutput)
}
