// Package provider contains rule providers that feed the registry: a
// file-backed provider that watches a directory of YAML rule documents
// and a store-backed managed provider that persists rules, including
// the registry's template-expansion write-backs.
package provider
