package vkg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckPushConstantRange(t *testing.T) {
	p := &ShaderProgramInfo{PushConstant: PushConstantRange{Offset: 0, Size: 64}}
	assert.NotPanics(t, func() { p.CheckPushConstantRange(0, 64) })
	assert.NotPanics(t, func() { p.CheckPushConstantRange(16, 16) })
	assert.Panics(t, func() { p.CheckPushConstantRange(32, 64) })
	assert.Panics(t, func() { p.CheckPushConstantRange(0, 128) })
}
