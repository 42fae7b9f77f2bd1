// Package api wires the HTTP surface: the server, its middleware chain and
// the resource handlers. Each handler group owns its routes and registers
// them on the shared router via RegisterRoutes.
package api
