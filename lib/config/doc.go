// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the telecli configuration file.
//
// Configuration comes from exactly one file, named by the --config flag
// or the TELECLI_CONFIG environment variable. There is no discovery and
// no layering of multiple files.
//
// The file is YAML. Files ending in .json or .jsonc are accepted too:
// comments and trailing commas are stripped with tidwall/jsonc and the
// result is decoded by the same YAML decoder, so both formats share one
// set of snake_case keys.
//
// Path-valued fields (tele_path, config_file, storage paths) expand
// ${VAR} and ${VAR:-default}.
package config
