// SPDX-License-Identifier: GPL-3.0-or-later

package dhtproxy

// PushNotification is the payload handed to [*Client.PushNotificationReceived]
// by the host application's push transport (APNs/FCM or similar). Only the
// bridge interface is in scope here: delivering the raw notification to this
// method is the caller's responsibility.
type PushNotification struct {
	// Token correlates this notification to a [Listener]'s push-token, as
	// returned by a prior SUBSCRIBE.
	Token uint64

	// HasTimeout is true when the notification carries a "timeout" field,
	// signalling the server dropped the subscription and it must be
	// re-established.
	HasTimeout bool
}

// PushNotificationReceived dispatches a server push to the matching
// listener. If no listener has the given token, the notification is
// silently ignored.
//
// When the notification carries a timeout, the listener is resubscribed:
// its prior worker is joined and a new SUBSCRIBE is issued to obtain a
// fresh push-token. Otherwise, a one-shot get is performed against the
// listener's key, pulling fresh values in response to a server wake-up.
func (c *Client) PushNotificationReceived(n PushNotification) {
	l, ok := c.listeners.findByPushToken(n.Token)
	if !ok {
		return
	}

	if n.HasTimeout {
		c.resubscribe(l)
		return
	}

	c.oneShotGet(l.key, l.callback, func(ok bool) {}, l.filter)
}

// PushNotificationReceivedJSON decodes raw per [DecodePushNotification] and
// dispatches it via [*Client.PushNotificationReceived]. This is the method
// matching spec §4.I's `pushNotificationReceived(json)` entry point for
// callers that only have the wire payload, e.g. a JNI/Cgo bridge handing
// over an APNs/FCM notification body unparsed.
func (c *Client) PushNotificationReceivedJSON(raw []byte) error {
	n, err := DecodePushNotification(raw)
	if err != nil {
		return err
	}
	c.PushNotificationReceived(n)
	return nil
}

// resubscribe joins the listener's current worker, then issues a fresh
// SUBSCRIBE to re-populate its push-token.
func (c *Client) resubscribe(l *Listener) {
	l.join()
	c.spawnPushWorker(l)
}
