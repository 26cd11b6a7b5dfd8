// Package ov provides CGO-free Go bindings for the OpenVINO inference
// runtime via its C API, loaded dynamically with purego.
//
// The runtime shared library is located across platforms and installation
// layouts (FindLibrary), resolved into a process-shared symbol table
// (Load/Loader), and every native resource is wrapped in an owning handle
// type that releases it exactly once (Core, Model, CompiledModel,
// InferRequest, Tensor, ...). Native status codes surface as typed *Error
// values.
//
// Typical use:
//
//	if err := ov.Load(); err != nil { ... }
//	core, err := ov.NewCore()
//	model, err := core.ReadModel("model.xml", "")
//	compiled, err := core.CompileModel(model, "CPU")
//	req, err := compiled.CreateInferRequest()
package ov
