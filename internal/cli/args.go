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

package cli

import (
	"errors"
)

// CommandSeparator separates the child's argv from the health check's argv.
const CommandSeparator = ";"

var (
	// ErrMissingSeparator is returned when no ';' argument is present.
	ErrMissingSeparator = errors.New("missing ';' between the child program and the health check program")
	// ErrMissingChild is returned when nothing precedes the separator.
	ErrMissingChild = errors.New("missing child program")
	// ErrMissingCheck is returned when nothing follows the separator.
	ErrMissingCheck = errors.New("missing health check program")
)

// SplitCommands splits args at the first ';' into the child and health
// check command lines. Later ';' arguments belong to the health check.
func SplitCommands(args []string) (child, check []string, err error) {
	for i, arg := range args {
		if arg != CommandSeparator {
			continue
		}
		child, check = args[:i], args[i+1:]
		switch {
		case len(child) == 0:
			return nil, nil, ErrMissingChild
		case len(check) == 0:
			return nil, nil, ErrMissingCheck
		}
		return child, check, nil
	}
	if len(args) == 0 {
		return nil, nil, ErrMissingChild
	}
	return nil, nil, ErrMissingSeparator
}
