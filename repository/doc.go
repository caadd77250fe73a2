// Package repository provides a reflection-driven repository over inspected
// Bun models: CRUD, filtered pagination, transactions, and relation
// mutations for belongs-to, has-one, has-many and many-to-many links.
package repository
