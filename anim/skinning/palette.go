// Package skinning converts composed pose buffers into GPU skinning palettes
// and stages the resulting matrix data for upload.
package skinning

import (
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/whosteenie/rigkit/anim/rig"
	"github.com/whosteenie/rigkit/common"
)

// BufferWrite describes a single GPU buffer write operation targeting a
// specific buffer at a given byte offset.
type BufferWrite struct {
	Buffer *wgpu.Buffer
	Offset uint64
	Data   []byte
}

// Palette computes and uploads the skinning matrices of one skeleton
// instance: per bone, the current component-space transform multiplied by the
// bone's inverse bind matrix. Uploads are staged as byte ranges covering only
// the bones that changed since the last stage and submitted in one flush.
type Palette interface {
	// BoneCount returns the number of bones in the palette.
	//
	// Returns:
	//   - int: the bone count
	BoneCount() int

	// Matrices returns the palette's current skinning matrices, one per bone
	// in index order. The returned slice is owned by the palette.
	//
	// Returns:
	//   - []mgl32.Mat4: the skinning matrices
	Matrices() []mgl32.Mat4

	// Update recomputes the skinning matrices from a composed pose buffer and
	// widens the dirty range to cover every bone whose matrix changed.
	//
	// Parameters:
	//   - pose: the composed pose to skin from
	Update(pose *rig.PoseBuffer)

	// Stage appends a buffer write covering the current dirty range and
	// clears it. No-op when nothing changed since the last stage.
	//
	// Parameters:
	//   - buffer: the GPU buffer the matrices live in
	//   - baseOffset: the byte offset of bone 0 within the buffer
	Stage(buffer *wgpu.Buffer, baseOffset uint64)

	// Flush submits all staged writes to the GPU queue and resets the staged
	// list. wgpu copies buffer data internally, so the staging storage is
	// reusable immediately after Flush returns.
	//
	// Parameters:
	//   - queue: the GPU queue to write through
	Flush(queue *wgpu.Queue)
}

const matrixBytes = 64 // 4x4 float32

type paletteImpl struct {
	mu   *sync.Mutex
	skel *rig.Skeleton

	inverseBind []mgl32.Mat4
	matrices    []mgl32.Mat4

	dirty                bool
	dirtyStart, dirtyEnd int

	// staging is reused across frames; wgpu's queue.WriteBuffer copies data
	// internally before returning.
	staging []byte
	staged  []BufferWrite
}

// Ensure paletteImpl implements Palette interface.
var _ Palette = &paletteImpl{}

// NewPalette creates a skinning palette for a skeleton instance. Inverse bind
// matrices are derived from the skeleton's component-space bind pose.
//
// Parameters:
//   - skel: the skeleton instance to skin
//   - options: functional options to further configure the palette
//
// Returns:
//   - Palette: the newly created palette
func NewPalette(skel *rig.Skeleton, options ...PaletteBuilderOption) Palette {
	n := skel.BoneCount()
	p := &paletteImpl{
		mu:          &sync.Mutex{},
		skel:        skel,
		inverseBind: make([]mgl32.Mat4, n),
		matrices:    make([]mgl32.Mat4, n),
		staging:     make([]byte, n*matrixBytes),
	}

	bindComponent := make([]rig.Transform, n)
	for i := 0; i < n; i++ {
		local := skel.BindLocal(int32(i))
		if parent := skel.Parent(int32(i)); parent >= 0 {
			bindComponent[i] = bindComponent[parent].WorldFrom(local, false)
		} else {
			bindComponent[i] = local
		}
		p.inverseBind[i] = bindComponent[i].Mat4().Inv()
		p.matrices[i] = mgl32.Ident4()
	}

	for _, option := range options {
		option(p)
	}

	// Everything must upload once before the first stage.
	p.dirty = true
	p.dirtyStart = 0
	p.dirtyEnd = n
	return p
}

func (p *paletteImpl) BoneCount() int {
	return len(p.matrices)
}

func (p *paletteImpl) Matrices() []mgl32.Mat4 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.matrices
}

func (p *paletteImpl) Update(pose *rig.PoseBuffer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.matrices {
		m := pose.ComponentAt(int32(i)).Mat4().Mul4(p.inverseBind[i])
		if m == p.matrices[i] {
			continue
		}
		p.matrices[i] = m
		p.markDirtyLocked(i)
	}
}

// markDirtyLocked widens the dirty range to include bone i.
func (p *paletteImpl) markDirtyLocked(i int) {
	if !p.dirty {
		p.dirtyStart = i
		p.dirtyEnd = i + 1
		p.dirty = true
		return
	}
	if i < p.dirtyStart {
		p.dirtyStart = i
	}
	if i+1 > p.dirtyEnd {
		p.dirtyEnd = i + 1
	}
}

func (p *paletteImpl) Stage(buffer *wgpu.Buffer, baseOffset uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.dirty {
		return
	}

	raw := common.SliceToBytes(p.matrices[p.dirtyStart:p.dirtyEnd])
	buf := p.staging[p.dirtyStart*matrixBytes : p.dirtyStart*matrixBytes+len(raw)]
	copy(buf, raw)

	p.staged = append(p.staged, BufferWrite{
		Buffer: buffer,
		Offset: baseOffset + uint64(p.dirtyStart)*matrixBytes,
		Data:   buf,
	})

	p.dirty = false
	p.dirtyStart = 0
	p.dirtyEnd = 0
}

func (p *paletteImpl) Flush(queue *wgpu.Queue) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, w := range p.staged {
		queue.WriteBuffer(w.Buffer, w.Offset, w.Data)
	}
	p.staged = p.staged[:0]
}
