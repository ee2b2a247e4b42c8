package detector

import (
	"encoding/json"
	"testing"

	"gocv.io/x/gocv"
)

func TestDecodeHands(t *testing.T) {
	full := LetterLLandmarks()
	fullJSON, _ := json.Marshal(full.Points[:])

	tests := []struct {
		name    string
		line    string
		want    int
		wantErr bool
	}{
		{name: "no hands", line: `{"hands":[]}`, want: 0},
		{name: "complete hand", line: `{"hands":[{"points":` + string(fullJSON) + `,"handedness":"Left","score":0.8}]}`, want: 1},
		{name: "partial hand dropped", line: `{"hands":[{"points":[{"x":1,"y":2,"z":3}],"score":0.9}]}`, want: 0},
		{name: "helper error", line: `{"hands":[],"error":"model not loaded"}`, wantErr: true},
		{name: "malformed", line: `{"hands":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hands, err := decodeHands([]byte(tt.line))
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeHands() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(hands) != tt.want {
				t.Errorf("decodeHands() returned %d hands, want %d", len(hands), tt.want)
			}
		})
	}

	t.Run("complete hand keeps points", func(t *testing.T) {
		hands, _ := decodeHands([]byte(`{"hands":[{"points":` + string(fullJSON) + `,"handedness":"Left","score":0.8}]}`))
		if len(hands) != 1 {
			t.Fatalf("decodeHands() returned %d hands, want 1", len(hands))
		}
		h := hands[0]
		if h.Handedness != "Left" || h.Score != 0.8 || h.Points != full.Points {
			t.Errorf("decoded hand = %+v", h)
		}
		if len(h.Features()) != FeatureCount {
			t.Errorf("decoded hand has %d features, want %d", len(h.Features()), FeatureCount)
		}
	})
}

func TestEncodeFrame(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		wantWidth     int
	}{
		{name: "small frame kept", width: 320, height: 240, wantWidth: 320},
		{name: "large frame scaled", width: 1280, height: 720, wantWidth: maxEncodeWidth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := gocv.NewMatWithSize(tt.height, tt.width, gocv.MatTypeCV8UC3)
			defer frame.Close()

			data, err := encodeFrame(&frame)
			if err != nil {
				t.Fatalf("encodeFrame() error = %v", err)
			}

			img, err := gocv.IMDecode(data, gocv.IMReadColor)
			if err != nil {
				t.Fatalf("IMDecode() error = %v", err)
			}
			defer img.Close()

			if img.Cols() != tt.wantWidth {
				t.Errorf("encoded width = %d, want %d", img.Cols(), tt.wantWidth)
			}
			if want := tt.height * tt.wantWidth / tt.width; img.Rows() != want {
				t.Errorf("encoded height = %d, want %d", img.Rows(), want)
			}
		})
	}
}

func TestMediaPipeDetector_EmptyFrame(t *testing.T) {
	d := &MediaPipeDetector{config: DefaultConfig()}

	hands, err := d.Detect(nil)
	if err != nil || hands != nil {
		t.Errorf("Detect(nil) = %v, %v, want nil, nil", hands, err)
	}

	empty := gocv.NewMat()
	defer empty.Close()
	if hands, err := d.Detect(&empty); err != nil || hands != nil {
		t.Errorf("Detect(empty) = %v, %v, want nil, nil", hands, err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("Close() without a helper error = %v", err)
	}
}
