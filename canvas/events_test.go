package canvas

import (
	"canvas-studio/core"
	"encoding/json"
	"testing"
)

func TestDecodePointerEvent(t *testing.T) {
	testCases := []struct {
		name    string
		body    string
		want    PointerEvent
		wantErr bool
	}{
		{
			name: "numeric secondary button",
			body: `{"kind":"down","screen":{"x":10,"y":20},"button":2}`,
			want: PointerEvent{Kind: PointerDown, Screen: core.Point{X: 10, Y: 20}, Button: ButtonSecondary},
		},
		{
			name: "numeric primary button",
			body: `{"kind":"down","screen":{"x":10,"y":20},"button":0}`,
			want: PointerEvent{Kind: PointerDown, Screen: core.Point{X: 10, Y: 20}, Button: ButtonPrimary},
		},
		{
			name: "named button",
			body: `{"kind":"pointerup","button":"right"}`,
			want: PointerEvent{Kind: PointerUp, Button: ButtonSecondary},
		},
		{
			name: "quoted number",
			body: `{"kind":"move","button":"2"}`,
			want: PointerEvent{Kind: PointerMove, Button: ButtonSecondary},
		},
		{
			name: "null button",
			body: `{"kind":"move","button":null}`,
			want: PointerEvent{Kind: PointerMove},
		},
		{name: "middle button", body: `{"kind":"down","button":1}`, wantErr: true},
		{name: "fractional button", body: `{"kind":"down","button":2.5}`, wantErr: true},
		{name: "unknown name", body: `{"kind":"down","button":"middle"}`, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var got PointerEvent
			err := json.Unmarshal([]byte(tc.body), &got)
			if tc.wantErr {
				if err == nil {
					t.Errorf("Expected an error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unmarshal() failed: %v", err)
			}
			if got != tc.want {
				t.Errorf("Unmarshal() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestButtonRoundTripsAsName(t *testing.T) {
	data, err := json.Marshal(PointerEvent{Kind: PointerDown, Button: ButtonSecondary})
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}
	var got PointerEvent
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal(%s) failed: %v", data, err)
	}
	if got.Button != ButtonSecondary {
		t.Errorf("Button = %v, want secondary", got.Button)
	}
}
