// Package oracle provides core.Oracle implementations.
//
// ModelOracle renders one prompt per operation, sends it to a model.Model and
// decodes the first JSON object of the reply into the typed content. Funcs
// adapts plain functions for embedders that reason without a model.
package oracle
