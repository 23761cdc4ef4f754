package gpucore

import "testing"

func TestMipSize(t *testing.T) {
	tests := []struct {
		size, level, want int
	}{
		{512, 0, 512},
		{512, 1, 256},
		{512, 8, 2},
		{512, 9, 1},
		{512, 12, 1},
		{3, 1, 1},
		{1, 0, 1},
	}
	for _, tt := range tests {
		if got := MipSize(tt.size, tt.level); got != tt.want {
			t.Errorf("MipSize(%d, %d) = %d, want %d", tt.size, tt.level, got, tt.want)
		}
	}
}

func TestTextureFormatBytesPerTexel(t *testing.T) {
	tests := []struct {
		format TextureFormat
		want   int
	}{
		{TextureFormatRGBA16Float, 8},
		{TextureFormatRGBA32Float, 16},
		{TextureFormatRGBA8Unorm, 4},
		{TextureFormat(99), 0},
	}
	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			if got := tt.format.BytesPerTexel(); got != tt.want {
				t.Errorf("BytesPerTexel() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestResourceStateReadable(t *testing.T) {
	for s := StateUndefined; s <= StateUnorderedAccess; s++ {
		want := s == StateShaderRead
		if got := s.Readable(); got != want {
			t.Errorf("%s.Readable() = %v, want %v", s, got, want)
		}
	}
}

func TestBarrierString(t *testing.T) {
	b := Barrier{Texture: 3, Level: 2, Before: StateShaderRead, After: StateUnorderedAccess}
	if got, want := b.String(), "tex3[2] shader-read->unordered-access"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	b.Level = AllLevels
	if got, want := b.String(), "tex3[*] shader-read->unordered-access"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestBindingTypeString(t *testing.T) {
	if got := BindingTypeStorageTexture.String(); got != "storage-texture" {
		t.Errorf("String() = %q", got)
	}
	if got := BindingType(0).String(); got != "BindingType(0)" {
		t.Errorf("String() = %q", got)
	}
}
