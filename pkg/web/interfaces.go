/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: interfaces.go
Description: Session acquisition and optional navigator capabilities used by the fuzzer.
*/

package web

import (
	"context"

	"github.com/kleascm/xssentinel/pkg/interfaces"
)

// SessionFactory acquires a navigator session for one run
type SessionFactory func(ctx context.Context) (interfaces.Navigator, error)

// ConsoleSource is implemented by navigators that collect console output and
// page exceptions. Drain returns everything collected since the last call.
type ConsoleSource interface {
	DrainConsole() []string
}

// StaticSession hands out an existing navigator
func StaticSession(nav interfaces.Navigator) SessionFactory {
	return func(context.Context) (interfaces.Navigator, error) {
		return nav, nil
	}
}
