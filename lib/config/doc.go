// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads hopedit's YAML configuration.
//
// The file is named by the --config flag or the HOPEDIT_CONFIG
// environment variable. Unlike a daemon, an editor must start with no
// configuration at all, so when neither is set [Load] returns
// [Default]. Values from the file are merged over the defaults, then
// ${VAR} and ${VAR:-default} references in path fields are expanded,
// and [Config.Validate] reports every problem at once with
// errors.Join.
//
// The file covers the hop programs (ssh, sudo, docker, podman), the
// shell started at every hop, connect/command/teardown timeouts, the
// native SSH client's key material, and editor defaults:
//
//	shell: sh
//	timeouts:
//	  connect: 30s
//	  command: 60s
//	  teardown: 5s
//	ssh:
//	  program: ssh
//	  client: openssh
//	  known_hosts: ${HOME}/.ssh/known_hosts
//	sudo:
//	  program: sudo
//	editor:
//	  default_mode: auto
//	  hex_width: 16
package config
