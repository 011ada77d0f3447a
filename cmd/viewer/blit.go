package main

import (
	gl "github.com/go-gl/gl/v4.1-core/gl"
)

// blitter uploads a CPU frame into a texture and copies it to the default
// framebuffer through a read framebuffer.
type blitter struct {
	tex    uint32
	fbo    uint32
	width  int32
	height int32
}

func newBlitter() *blitter {
	b := &blitter{}
	gl.GenTextures(1, &b.tex)
	gl.BindTexture(gl.TEXTURE_2D, b.tex)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.GenFramebuffers(1, &b.fbo)
	return b
}

// draw uploads pix (tightly packed RGBA8, top row first) and stretches it
// over a dstW x dstH framebuffer.
func (b *blitter) draw(pix []uint8, w, h, dstW, dstH int) {
	if len(pix) == 0 {
		return
	}
	gl.BindTexture(gl.TEXTURE_2D, b.tex)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	if int32(w) != b.width || int32(h) != b.height {
		b.width, b.height = int32(w), int32(h)
		gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, b.width, b.height, 0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pix))
		gl.BindFramebuffer(gl.READ_FRAMEBUFFER, b.fbo)
		gl.FramebufferTexture2D(gl.READ_FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, b.tex, 0)
	} else {
		gl.TexSubImage2D(gl.TEXTURE_2D, 0, 0, 0, b.width, b.height, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pix))
	}

	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, b.fbo)
	gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, 0)
	gl.Viewport(0, 0, int32(dstW), int32(dstH))
	gl.ClearColor(0, 0, 0, 1)
	gl.Clear(gl.COLOR_BUFFER_BIT)
	// Rows arrive top first; flip on the way out.
	gl.BlitFramebuffer(0, 0, b.width, b.height, 0, int32(dstH), int32(dstW), 0, gl.COLOR_BUFFER_BIT, gl.LINEAR)
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, 0)
}

func (b *blitter) release() {
	gl.DeleteFramebuffers(1, &b.fbo)
	gl.DeleteTextures(1, &b.tex)
}
