// Package roomsync keeps a local view of chat rooms and notifications in
// step with two server push transports.
//
// A Client is the explicit context shared by every consumer. It owns:
//
//   - a connection registry with one shared event stream (SSE) and one
//     shared message channel (STOMP over WebSocket),
//   - the room store, fed by NEW_ROOM and NEW_MESSAGE pushes and by room
//     list refetches,
//   - the notification store, fed by event stream pushes and by API
//     queries.
//
// Transport callbacks never touch the stores directly. They post events to
// a single event loop, which applies them one at a time.
//
// Basic usage:
//
//	cfg, err := roomsync.LoadConfig()
//	if err != nil {
//		return err
//	}
//	client, err := roomsync.New(cfg, roomsync.WithLogger(log))
//	if err != nil {
//		return err
//	}
//	defer client.Shutdown(context.Background())
//
//	if err := client.Login(ctx, roomsync.SessionCredentials(userID, sessionCookie)); err != nil {
//		return err
//	}
//	release, err := client.Mount(ctx, roomsync.MessageChannel)
//	if err != nil {
//		return err
//	}
//	defer release()
//
//	sub := client.Rooms().Watch(ctx)
//	for state := range sub.C() {
//		render(state.Rooms)
//	}
//
// Logout tears both transports down and clears both stores. Releasing a
// mount never closes a transport.
package roomsync
