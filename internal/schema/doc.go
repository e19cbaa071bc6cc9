// Package schema holds the static catalogue of tool definitions: names,
// descriptions, and typed input schemas. The registry is built once at
// startup and read-only afterwards.
//
// Both the discovery endpoints and the dispatcher's payload validation
// consume this registry, so the schemas a caller sees are exactly the
// schemas that are enforced.
package schema
