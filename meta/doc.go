// Package meta introspects registered Bun models: column fields with their
// API attributes and the four relation kinds (belongs-to, has-one, has-many,
// many-to-many) the REST layer traverses.
package meta
