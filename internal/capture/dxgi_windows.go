//go:build windows

package capture

import (
	"fmt"
	"image"
	"syscall"
	"time"
	"unsafe"
)

// DXGI/D3D11 DLL procs
var (
	dxgiDLL  = syscall.NewLazyDLL("dxgi.dll")
	d3d11DLL = syscall.NewLazyDLL("d3d11.dll")

	procCreateDXGIFactory1 = dxgiDLL.NewProc("CreateDXGIFactory1")
	procD3D11CreateDevice  = d3d11DLL.NewProc("D3D11CreateDevice")
)

// D3D11/DXGI constants
const (
	d3dDriverTypeUnknown = 0
	d3dFeatureLevel11_0  = 0xb000
	d3d11SDKVersion      = 7

	d3d11CreateDeviceBGRASupport = 0x20

	d3d11UsageStaging  = 3
	d3d11CPUAccessRead = 0x20000
	dxgiFormatB8G8R8A8 = 87

	dxgiErrNotFound               = 0x887A0002
	dxgiErrNotCurrentlyAvailable  = 0x887A0022
	dxgiErrUnsupported            = 0x887A0004
	dxgiErrWaitTimeout            = 0x887A0027
	dxgiErrAccessLost             = 0x887A0026
	dxgiErrInvalidCall            = 0x887A0001
	dxgiErrDeviceRemoved          = 0x887A0005
	dxgiErrDeviceReset            = 0x887A0007
	dxgiErrSessionDisconnected    = 0x887A0028
	dxgiErrAccessDenied           = 0x887A002B

	// DXGI/D3D11 COM vtable indices
	dxgiFactory1EnumAdapters1  = 12 // IDXGIFactory1
	dxgiAdapterEnumOutputs     = 7  // IDXGIAdapter
	dxgiAdapterGetDesc         = 8  // IDXGIAdapter
	dxgiOutputGetDesc          = 7  // IDXGIOutput
	dxgiOutput1DuplicateOutput = 22 // IDXGIOutput1
	dxgiDeviceSetGPUPriority   = 10 // IDXGIDevice::SetGPUThreadPriority
	dxgiDevice1SetMaxLatency   = 12 // IDXGIDevice1::SetMaximumFrameLatency
	dxgiDuplGetDesc            = 7  // IDXGIOutputDuplication
	dxgiDuplAcquireNextFrame   = 8  // IDXGIOutputDuplication
	dxgiDuplReleaseFrame       = 14 // IDXGIOutputDuplication
	d3d11DeviceCreateTexture2D = 5  // ID3D11Device
	d3d11CtxMap                = 14 // ID3D11DeviceContext
	d3d11CtxUnmap              = 15 // ID3D11DeviceContext
	d3d11CtxCopyResource       = 47 // ID3D11DeviceContext
)

// COM GUIDs for DXGI interfaces
var (
	iidIDXGIFactory1   = comGUID{0x770aae78, 0xf26f, 0x4dba, [8]byte{0xa8, 0x29, 0x25, 0x3c, 0x83, 0xd1, 0xb3, 0x87}}
	iidIDXGIDevice     = comGUID{0x54ec77fa, 0x1377, 0x44e6, [8]byte{0x8c, 0x32, 0x88, 0xfd, 0x5f, 0x44, 0xc8, 0x4c}}
	iidIDXGIDevice1    = comGUID{0x77db970f, 0x6276, 0x48ba, [8]byte{0xba, 0x28, 0x07, 0x01, 0x43, 0xb4, 0x39, 0x2c}}
	iidIDXGIOutput1    = comGUID{0x00cddea8, 0x939b, 0x4b83, [8]byte{0xa3, 0x40, 0xa6, 0x85, 0x22, 0x66, 0x66, 0xcc}}
	iidID3D11Texture2D = comGUID{0x6f15aaf2, 0xd208, 0x4e89, [8]byte{0x9a, 0xb4, 0x48, 0x95, 0x35, 0xd3, 0x4f, 0x9c}}
)

// dxgiAdapterDesc matches DXGI_ADAPTER_DESC.
type dxgiAdapterDesc struct {
	Description           [128]uint16
	VendorID              uint32
	DeviceID              uint32
	SubSysID              uint32
	Revision              uint32
	DedicatedVideoMemory  uintptr
	DedicatedSystemMemory uintptr
	SharedSystemMemory    uintptr
	AdapterLuid           int64
}

// dxgiOutputDesc matches DXGI_OUTPUT_DESC (96 bytes on amd64).
type dxgiOutputDesc struct {
	DeviceName        [32]uint16
	Left              int32
	Top               int32
	Right             int32
	Bottom            int32
	AttachedToDesktop int32
	Rotation          uint32
	Monitor           uintptr
}

// d3d11Texture2DDesc matches D3D11_TEXTURE2D_DESC (44 bytes).
type d3d11Texture2DDesc struct {
	Width          uint32
	Height         uint32
	MipLevels      uint32
	ArraySize      uint32
	Format         uint32
	SampleCount    uint32 // DXGI_SAMPLE_DESC.Count
	SampleQuality  uint32 // DXGI_SAMPLE_DESC.Quality
	Usage          uint32
	BindFlags      uint32
	CPUAccessFlags uint32
	MiscFlags      uint32
}

// d3d11MappedSubresource matches D3D11_MAPPED_SUBRESOURCE.
type d3d11MappedSubresource struct {
	PData      uintptr
	RowPitch   uint32
	DepthPitch uint32
}

type dxgiRational struct {
	Numerator   uint32
	Denominator uint32
}

// dxgiModeDesc matches DXGI_MODE_DESC.
type dxgiModeDesc struct {
	Width            uint32
	Height           uint32
	RefreshRate      dxgiRational
	Format           uint32
	ScanlineOrdering uint32
	Scaling          uint32
}

// dxgiOutDuplDesc matches DXGI_OUTDUPL_DESC.
type dxgiOutDuplDesc struct {
	ModeDesc                   dxgiModeDesc
	Rotation                   uint32
	DesktopImageInSystemMemory int32 // BOOL
}

// dxgiOutDuplFrameInfo matches DXGI_OUTDUPL_FRAME_INFO.
type dxgiOutDuplFrameInfo struct {
	LastPresentTime           int64
	LastMouseUpdateTime       int64
	AccumulatedFrames         uint32
	RectsCoalesced            int32
	ProtectedContentMaskedOut int32
	PointerPositionX          int32
	PointerPositionY          int32
	PointerVisible            int32
	TotalMetadataBufferSize   uint32
	PointerShapeBufferSize    uint32
}

// dxgiEnumerator discovers adapters through IDXGIFactory1.
type dxgiEnumerator struct {
	factory uintptr
}

// newDXGIEnumerator creates the DXGI factory once; per-adapter devices are
// created lazily during EnumAdapters.
func newDXGIEnumerator() (DeviceEnumerator, error) {
	var factory uintptr
	hr, _, _ := procCreateDXGIFactory1.Call(
		uintptr(unsafe.Pointer(&iidIDXGIFactory1)),
		uintptr(unsafe.Pointer(&factory)),
	)
	if int32(hr) < 0 {
		return nil, fmt.Errorf("CreateDXGIFactory1 failed: 0x%08X", uint32(hr))
	}
	return &dxgiEnumerator{factory: factory}, nil
}

// EnumAdapters walks IDXGIFactory1::EnumAdapters1 and creates one D3D11
// device per adapter. Adapters that refuse device creation (e.g. the
// software render adapter on some systems) are skipped.
func (e *dxgiEnumerator) EnumAdapters() ([]Device, error) {
	var devices []Device
	for i := 0; ; i++ {
		var adapter uintptr
		hr, _, _ := syscall.SyscallN(
			comVtblFn(e.factory, dxgiFactory1EnumAdapters1),
			e.factory,
			uintptr(i),
			uintptr(unsafe.Pointer(&adapter)),
		)
		if uint32(hr) == dxgiErrNotFound {
			break
		}
		if int32(hr) < 0 {
			for _, d := range devices {
				d.Release()
			}
			return nil, fmt.Errorf("IDXGIFactory1::EnumAdapters1(%d): 0x%08X", i, uint32(hr))
		}

		dev, err := newDXGIDevice(adapter)
		if err != nil {
			comRelease(adapter)
			continue
		}
		devices = append(devices, dev)
	}
	return devices, nil
}

// dxgiDevice owns one adapter's ID3D11Device/ID3D11DeviceContext pair plus
// the IDXGIAdapter it was created from. Shared read-only by every
// duplication session under this adapter.
type dxgiDevice struct {
	adapter uintptr // IDXGIAdapter1
	device  uintptr // ID3D11Device
	context uintptr // ID3D11DeviceContext
	name    string
}

func newDXGIDevice(adapter uintptr) (*dxgiDevice, error) {
	var desc dxgiAdapterDesc
	if _, err := comCall(adapter, dxgiAdapterGetDesc, uintptr(unsafe.Pointer(&desc))); err != nil {
		return nil, fmt.Errorf("IDXGIAdapter::GetDesc: %w", err)
	}

	var device, context uintptr
	featureLevel := uint32(d3dFeatureLevel11_0)
	var actualLevel uint32

	// DriverType must be UNKNOWN when an explicit adapter is passed.
	hr, _, _ := procD3D11CreateDevice.Call(
		adapter,
		uintptr(d3dDriverTypeUnknown),
		0, // Software
		uintptr(d3d11CreateDeviceBGRASupport),
		uintptr(unsafe.Pointer(&featureLevel)),
		1,
		uintptr(d3d11SDKVersion),
		uintptr(unsafe.Pointer(&device)),
		uintptr(unsafe.Pointer(&actualLevel)),
		uintptr(unsafe.Pointer(&context)),
	)
	if int32(hr) < 0 {
		return nil, fmt.Errorf("D3D11CreateDevice failed: 0x%08X", uint32(hr))
	}

	return &dxgiDevice{
		adapter: adapter,
		device:  device,
		context: context,
		name:    syscall.UTF16ToString(desc.Description[:]),
	}, nil
}

func (d *dxgiDevice) Name() string { return d.name }

// RaiseGPUPriority enables the base-priority token privilege, switches the
// process GPU scheduling class to realtime, and raises the device's GPU
// thread priority. Any step may fail without administrator rights; callers
// log and continue.
func (d *dxgiDevice) RaiseGPUPriority() error {
	if err := enableBasePriorityPrivilege(); err != nil {
		return fmt.Errorf("enable SeIncreaseBasePriorityPrivilege: %w", err)
	}
	if err := setRealtimeGPUPriorityClass(); err != nil {
		return fmt.Errorf("set realtime GPU scheduling class: %w", err)
	}

	var dxgiDev uintptr
	if _, err := comCall(d.device, vtblQueryInterface,
		uintptr(unsafe.Pointer(&iidIDXGIDevice)),
		uintptr(unsafe.Pointer(&dxgiDev)),
	); err != nil {
		return fmt.Errorf("QueryInterface IDXGIDevice: %w", err)
	}
	defer comRelease(dxgiDev)

	if _, err := comCall(dxgiDev, dxgiDeviceSetGPUPriority, uintptr(7)); err != nil {
		return fmt.Errorf("IDXGIDevice::SetGPUThreadPriority: %w", err)
	}
	return nil
}

func (d *dxgiDevice) SetMaximumFrameLatency(frames int) error {
	var dxgiDev1 uintptr
	if _, err := comCall(d.device, vtblQueryInterface,
		uintptr(unsafe.Pointer(&iidIDXGIDevice1)),
		uintptr(unsafe.Pointer(&dxgiDev1)),
	); err != nil {
		return fmt.Errorf("QueryInterface IDXGIDevice1: %w", err)
	}
	defer comRelease(dxgiDev1)

	if _, err := comCall(dxgiDev1, dxgiDevice1SetMaxLatency, uintptr(frames)); err != nil {
		return fmt.Errorf("IDXGIDevice1::SetMaximumFrameLatency(%d): %w", frames, err)
	}
	return nil
}

func (d *dxgiDevice) EnumOutput(index int) (Output, error) {
	var output uintptr
	hr, _, _ := syscall.SyscallN(
		comVtblFn(d.adapter, dxgiAdapterEnumOutputs),
		d.adapter,
		uintptr(index),
		uintptr(unsafe.Pointer(&output)),
	)
	switch uint32(hr) {
	case dxgiErrNotFound:
		return nil, ErrNoMoreOutputs
	case dxgiErrNotCurrentlyAvailable:
		return nil, ErrNotCurrentlyAvailable
	}
	if int32(hr) < 0 || output == 0 {
		return nil, fmt.Errorf("IDXGIAdapter::EnumOutputs(%d): 0x%08X", index, uint32(hr))
	}
	return &dxgiOutput{device: d, output: output}, nil
}

func (d *dxgiDevice) Release() {
	comRelease(d.context)
	comRelease(d.device)
	comRelease(d.adapter)
	d.context, d.device, d.adapter = 0, 0, 0
}

// dxgiOutput wraps one IDXGIOutput pending duplication.
type dxgiOutput struct {
	device *dxgiDevice
	output uintptr // IDXGIOutput
}

func (o *dxgiOutput) Descriptor() (OutputDescriptor, error) {
	var desc dxgiOutputDesc
	if _, err := comCall(o.output, dxgiOutputGetDesc, uintptr(unsafe.Pointer(&desc))); err != nil {
		return OutputDescriptor{}, fmt.Errorf("IDXGIOutput::GetDesc: %w", err)
	}
	return OutputDescriptor{
		DeviceName:        syscall.UTF16ToString(desc.DeviceName[:]),
		Rect:              NewDesktopRect(int(desc.Left), int(desc.Top), int(desc.Right), int(desc.Bottom)),
		AttachedToDesktop: desc.AttachedToDesktop != 0,
	}, nil
}

func (o *dxgiOutput) OpenDuplication() (Duplication, error) {
	// IDXGIOutput1 is required for DuplicateOutput; its absence usually
	// means the system does not support DirectX 11.
	var output1 uintptr
	if _, err := comCall(o.output, vtblQueryInterface,
		uintptr(unsafe.Pointer(&iidIDXGIOutput1)),
		uintptr(unsafe.Pointer(&output1)),
	); err != nil {
		return nil, fmt.Errorf("QueryInterface IDXGIOutput1: %w", err)
	}
	defer comRelease(output1)

	var duplication uintptr
	if _, err := comCall(output1, dxgiOutput1DuplicateOutput,
		o.device.device,
		uintptr(unsafe.Pointer(&duplication)),
	); err != nil {
		return nil, fmt.Errorf("IDXGIOutput1::DuplicateOutput: %w", err)
	}

	var duplDesc dxgiOutDuplDesc
	hr, _, _ := syscall.SyscallN(
		comVtblFn(duplication, dxgiDuplGetDesc),
		duplication,
		uintptr(unsafe.Pointer(&duplDesc)),
	)
	if int32(hr) < 0 {
		comRelease(duplication)
		return nil, fmt.Errorf("IDXGIOutputDuplication::GetDesc: 0x%08X", uint32(hr))
	}
	width := int(duplDesc.ModeDesc.Width)
	height := int(duplDesc.ModeDesc.Height)
	if width <= 0 || height <= 0 {
		comRelease(duplication)
		return nil, fmt.Errorf("invalid duplication dimensions: %dx%d", width, height)
	}

	// Persistent staging texture, CPU-readable, reused every frame.
	stagingDesc := d3d11Texture2DDesc{
		Width:          uint32(width),
		Height:         uint32(height),
		MipLevels:      1,
		ArraySize:      1,
		Format:         dxgiFormatB8G8R8A8,
		SampleCount:    1,
		Usage:          d3d11UsageStaging,
		CPUAccessFlags: d3d11CPUAccessRead,
	}
	var staging uintptr
	if _, err := comCall(o.device.device, d3d11DeviceCreateTexture2D,
		uintptr(unsafe.Pointer(&stagingDesc)),
		0, // pInitialData
		uintptr(unsafe.Pointer(&staging)),
	); err != nil {
		comRelease(duplication)
		return nil, fmt.Errorf("CreateTexture2D staging: %w", err)
	}

	return &dxgiDuplication{
		device:      o.device,
		duplication: duplication,
		staging:     staging,
		width:       width,
		height:      height,
	}, nil
}

// dxgiDuplication is a live IDXGIOutputDuplication plus its staging texture.
// Move-only; Close releases the native handles exactly once.
type dxgiDuplication struct {
	device      *dxgiDevice
	duplication uintptr // IDXGIOutputDuplication
	staging     uintptr // ID3D11Texture2D
	width       int
	height      int
}

// AcquireFrame waits up to timeout for a new frame and reads it back
// through the staging texture. Returns ErrNoFrameYet on timeout or when the
// desktop has not been redrawn; duplication-invalidating HRESULTs are
// wrapped as ErrDeviceLost so the owning group tears down and reinitializes.
func (d *dxgiDuplication) AcquireFrame(timeout time.Duration) (*image.RGBA, error) {
	var frameInfo dxgiOutDuplFrameInfo
	var resource uintptr

	hr, _, _ := syscall.SyscallN(
		comVtblFn(d.duplication, dxgiDuplAcquireNextFrame),
		d.duplication,
		uintptr(timeout.Milliseconds()),
		uintptr(unsafe.Pointer(&frameInfo)),
		uintptr(unsafe.Pointer(&resource)),
	)
	switch uint32(hr) {
	case dxgiErrWaitTimeout:
		return nil, ErrNoFrameYet
	case dxgiErrAccessLost, dxgiErrDeviceRemoved, dxgiErrDeviceReset,
		dxgiErrInvalidCall, dxgiErrSessionDisconnected, dxgiErrAccessDenied:
		return nil, fmt.Errorf("%w: AcquireNextFrame 0x%08X", ErrDeviceLost, uint32(hr))
	}
	if int32(hr) < 0 {
		return nil, fmt.Errorf("AcquireNextFrame: 0x%08X", uint32(hr))
	}

	// No new frames accumulated since the last acquire, only pointer
	// movement. Release immediately and report nothing new.
	if frameInfo.AccumulatedFrames == 0 {
		comRelease(resource)
		d.releaseFrame()
		return nil, ErrNoFrameYet
	}

	// QueryInterface to the D3D11 texture behind the DXGI resource
	var texture uintptr
	_, err := comCall(resource, vtblQueryInterface,
		uintptr(unsafe.Pointer(&iidID3D11Texture2D)),
		uintptr(unsafe.Pointer(&texture)),
	)
	comRelease(resource)
	if err != nil {
		d.releaseFrame()
		return nil, fmt.Errorf("QueryInterface ID3D11Texture2D: %w", err)
	}

	// CopyResource(staging, texture): GPU-to-GPU copy. Returns void;
	// failures surface from the Map below.
	syscall.SyscallN(
		comVtblFn(d.device.context, d3d11CtxCopyResource),
		d.device.context,
		d.staging,
		texture,
	)
	comRelease(texture)

	// Map staging texture
	var mapped d3d11MappedSubresource
	hr, _, _ = syscall.SyscallN(
		comVtblFn(d.device.context, d3d11CtxMap),
		d.device.context,
		d.staging,
		0, // Subresource
		1, // D3D11_MAP_READ
		0, // Flags
		uintptr(unsafe.Pointer(&mapped)),
	)
	if int32(hr) < 0 {
		d.releaseFrame()
		return nil, fmt.Errorf("Map staging texture: 0x%08X", uint32(hr))
	}

	img := GetFrameImage(d.width, d.height)
	copyBGRAtoRGBA(img, mapped.PData, int(mapped.RowPitch), d.width, d.height)

	syscall.SyscallN(comVtblFn(d.device.context, d3d11CtxUnmap), d.device.context, d.staging, 0)
	d.releaseFrame()

	return img, nil
}

func (d *dxgiDuplication) releaseFrame() {
	syscall.SyscallN(comVtblFn(d.duplication, dxgiDuplReleaseFrame), d.duplication)
}

func (d *dxgiDuplication) Close() {
	comRelease(d.staging)
	comRelease(d.duplication)
	d.staging, d.duplication = 0, 0
}

// copyBGRAtoRGBA reads the mapped BGRA surface into img, swapping the red
// and blue channels and dropping GPU row-pitch padding.
func copyBGRAtoRGBA(img *image.RGBA, data uintptr, rowPitch, width, height int) {
	rowBytes := width * 4
	for y := 0; y < height; y++ {
		src := unsafe.Slice((*byte)(unsafe.Pointer(data+uintptr(y*rowPitch))), rowBytes)
		dst := img.Pix[y*img.Stride : y*img.Stride+rowBytes]
		for x := 0; x < rowBytes; x += 4 {
			dst[x] = src[x+2]
			dst[x+1] = src[x+1]
			dst[x+2] = src[x]
			dst[x+3] = 0xFF
		}
	}
}
