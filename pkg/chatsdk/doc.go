/*
Package chatsdk is the client side of the realtime room messaging service.

# Overview

A UI layer that wants live messages for a room creates a Session and opens
it. The Session mints a room-scoped capability token, fetches a history
snapshot, subscribes to the room's live channel over websocket, and merges
everything through a Reconciler into one ordered, de-duplicated message
sequence:

	client := chatsdk.NewClient("https://api.example.com")
	session := chatsdk.NewSession(chatsdk.SessionConfig{
		Client:   client,
		DeviceID: deviceID,
		Room:     chatsdk.RoomRef{Type: "group", ID: groupID},
		OnChange: func() { render(session.Messages()) },
	})
	session.Open()
	defer session.Close()

	if ok := session.Send("hello"); !ok {
		// not connected, or empty text; restore the input for retry
	}

Sends are optimistic: the message appears in Messages() immediately and is
resolved (or marked failed) when the durable append settles. Transport drops
recover automatically: the session schedules a reconnect every 5 seconds
until the room lets it back in, with no retry cap. Access denial is the one
terminal failure; a denied session stays in StateError and does not retry.

The lower-level pieces are exported for callers that need them: Client wraps
the HTTP surface (token mint, history fetch, append) and Reconciler does the
merge bookkeeping.
*/
package chatsdk
