package websocket

import (
	"reflect"

	socketio "github.com/zishang520/socket.io/v2/socket"
)

type ackInvoker func(err error, payload map[string]any)

// extractAck splits off the acknowledgement callback the client may pass as
// the last argument of an event.
func extractAck(datas []any) (ackInvoker, []any) {
	if len(datas) == 0 {
		return nil, datas
	}
	if ack := wrapAck(datas[len(datas)-1]); ack != nil {
		return ack, datas[:len(datas)-1]
	}
	return nil, datas
}

// wrapAck adapts whatever function type the socket library hands us. A one
// argument callback gets the error or the payload; a two argument one gets
// the payload list and the error, in the library's order.
func wrapAck(candidate any) ackInvoker {
	fn := reflect.ValueOf(candidate)
	if candidate == nil || fn.Kind() != reflect.Func {
		return nil
	}
	typ := fn.Type()

	return func(err error, payload map[string]any) {
		args := make([]reflect.Value, typ.NumIn())
		for i := range args {
			want := typ.In(i)
			var v any
			switch {
			case typ.NumIn() == 1 && err != nil:
				v = err
			case typ.NumIn() == 1:
				v = payload
			case want.Kind() == reflect.Slice:
				v = []any{payload}
			case want.Implements(reflect.TypeOf((*error)(nil)).Elem()):
				v = err
			}
			args[i] = valueOf(v, want)
		}
		fn.Call(args)
	}
}

func valueOf(v any, want reflect.Type) reflect.Value {
	if v == nil {
		return reflect.Zero(want)
	}
	rv := reflect.ValueOf(v)
	switch {
	case rv.Type().AssignableTo(want):
		return rv
	case rv.Type().ConvertibleTo(want):
		return rv.Convert(want)
	}
	return reflect.Zero(want)
}

// respond acks the event if the client asked for it, and emits the reply
// event either way.
func respond(socket *socketio.Socket, ack ackInvoker, event string, payload map[string]any, err error) {
	if ack != nil {
		ack(err, payload)
	}
	if event != "" && payload != nil {
		_ = socket.Emit(event, payload)
	}
}

func okPayload(extra map[string]any) map[string]any {
	payload := map[string]any{"status": "ok"}
	for k, v := range extra {
		payload[k] = v
	}
	return payload
}

func errorPayload(err error) map[string]any {
	return map[string]any{"status": "error", "error": err.Error()}
}
