// Copyright 2025 CloudWeGo Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mono

import (
	"errors"
	"fmt"

	"github.com/rhelmot/CelesteAutosplitterCore/pkg/proc"
)

var (
	// ErrNotFound means the metadata was walked completely without a match.
	ErrNotFound = errors.New("not found")
	// ErrNotInitialized means a class or object exists but its storage has
	// not been allocated yet. It is expected while the game boots.
	ErrNotInitialized = errors.New("not initialized")

	errUnknownKind   = errors.New("unknown class kind")
	errGenericDepth  = errors.New("generic instantiation chain too deep")
	errChainTooLong  = errors.New("linked list too long")
	errBadFieldCount = errors.New("implausible field count")
	errBadTableSize  = errors.New("implausible hash table size")
)

// StructuralError reports metadata that does not have the shape the layout
// promises. It invalidates everything resolved from the same process.
type StructuralError struct {
	Op   string
	Addr proc.Address
	Err  error
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("%s at %v: %v", e.Op, e.Addr, e.Err)
}

func (e *StructuralError) Unwrap() error {
	return e.Err
}

func structural(op string, addr proc.Address, err error) error {
	return &StructuralError{Op: op, Addr: addr, Err: err}
}

// IsStructural reports whether err, or any error it wraps, is a
// *StructuralError.
func IsStructural(err error) bool {
	var se *StructuralError
	return errors.As(err, &se)
}
