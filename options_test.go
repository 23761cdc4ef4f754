package irradiance

import "testing"

func TestOptions(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
		want options
	}{
		{
			name: "defaults",
			want: defaultOptions(),
		},
		{
			name: "overrides",
			opts: []Option{WithPeriod(10), WithMaxSources(4), WithWorkgroupSize(16, 4), WithLabel("sky"), WithGroundTruthLimit(2)},
			want: options{period: 10, maxSources: 4, workgroupSize: [2]uint32{16, 4}, label: "sky", truthLimit: 2},
		},
		{
			name: "invalid values keep defaults",
			opts: []Option{WithPeriod(-1), WithWorkgroupSize(0, 0), WithLabel(""), WithGroundTruthLimit(-3)},
			want: defaultOptions(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := defaultOptions()
			for _, opt := range tt.opts {
				opt(&got)
			}
			if got != tt.want {
				t.Errorf("options = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestWorkgroups(t *testing.T) {
	tests := []struct {
		w, h    int
		size    [2]uint32
		x, y, z uint32
	}{
		{512, 512, [2]uint32{8, 8}, 64, 64, 6},
		{1, 1, [2]uint32{8, 8}, 1, 1, 6},
		{9, 17, [2]uint32{8, 8}, 2, 3, 6},
		{100, 30, [2]uint32{16, 4}, 7, 8, 6},
	}
	for _, tt := range tests {
		o := defaultOptions()
		o.workgroupSize = tt.size
		x, y, z := o.workgroups(tt.w, tt.h)
		if x != tt.x || y != tt.y || z != tt.z {
			t.Errorf("workgroups(%d, %d) with %v = %d,%d,%d, want %d,%d,%d",
				tt.w, tt.h, tt.size, x, y, z, tt.x, tt.y, tt.z)
		}
	}
}
