// Package cmd implements the command-line interface of tKV.
//
// The package is organized into several subpackages:
//
//   - shell: the line interpreter with the ztie / zuntie builtins
//   - kv: one-shot commands (get, set, del, has, keys, info) on a store file
//   - util: shared utilities for flags and configuration (internal use)
//
// Configuration is read from flags, from TKV_* environment variables and
// from .env / .env.local files, in that order of precedence.
//
// See tkv -help for a list of all commands.
package cmd
