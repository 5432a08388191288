package main

import "context"

// cmdContext is the root context for commands; a variable so tests can
// substitute a cancellable parent.
var cmdContext = context.Background
