// Package capture implements the camera capture state machine.
//
// The machine is pure: [Next] maps a [State] and an [Event] to the following state, and
// [Controller] drives it against two camera sources, a [LocalCamera] on this machine and a
// [RemoteCamera] proxied by the backend. Presentation layers subscribe with
// [Controller.Observe] and render the [Status] they receive.
//
// The controller owns both camera handles. It releases the previous source before acquiring
// a new one and never holds its lock across a device or network call; a [Controller.Reset]
// during an acquisition invalidates it and the late handle is released on arrival.
package capture
