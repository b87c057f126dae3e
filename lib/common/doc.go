// Package common holds the ambient pieces shared by the CLI and the libraries:
// the dragonboat logger adapter and the tie configuration.
package common
