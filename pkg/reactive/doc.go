// Package reactive is the small dependency-tracking scheduler the params
// store and URL bindings run on.
//
// A Runtime owns the tracking state: the listener currently recording
// dependencies and the batch depth. Stores created from a Runtime notify
// the effects that read them whenever they change, and effects re-run
// synchronously on the same goroutine.
//
//	rt := reactive.NewRuntime()
//	store := rt.NewStore(params.NewMap())
//
//	rt.Effect(func() reactive.Cleanup {
//	    v, _ := store.Get("q")
//	    fmt.Println("q is", v)
//	    return nil
//	})
//
//	store.Set("q", "go") // prints "q is go"
//
// # Concurrency
//
// A Runtime is confined to one goroutine, like a session's event loop. The
// Store guards its data with a lock so Raw snapshots may be taken from other
// goroutines, but writes and effects must stay on the owning goroutine.
package reactive
