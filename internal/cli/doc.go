// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

/*
Package cli implements the health-notify command line.

Usage:

	health-notify [flags] CHILD_PROGRAM [ARG...] ';' CHECK_PROGRAM [ARG...]

Flags are only recognised before CHILD_PROGRAM. The first literal ';'
argument separates the child's argv from the health check's argv, so both
may contain arguments that start with '-'. In most shells the separator
has to be quoted or escaped:

	health-notify --child-notify -- my-server --port 8080 \; curl -fsS http://localhost:8080/healthz

The process exits with the child's exit code, 1 if that is unavailable or
the child could not be started, and 2 on usage errors.
*/
package cli
