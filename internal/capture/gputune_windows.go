//go:build windows

package capture

import (
	"fmt"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	modAdvapi32               = windows.NewLazySystemDLL("advapi32.dll")
	procAdjustTokenPrivileges = modAdvapi32.NewProc("AdjustTokenPrivileges")

	modGdi32                       = windows.NewLazySystemDLL("gdi32.dll")
	procSetSchedulingPriorityClass = modGdi32.NewProc("D3DKMTSetProcessSchedulingPriorityClass")
)

// D3DKMT_SCHEDULINGPRIORITYCLASS_REALTIME
const schedulingPriorityClassRealtime = 5

// enableBasePriorityPrivilege enables SeIncreaseBasePriorityPrivilege on the
// current process token. Required before the realtime GPU scheduling class
// can be requested; the privilege is typically held only by administrators
// and LocalSystem.
func enableBasePriorityPrivilege() error {
	var token windows.Token
	proc := windows.CurrentProcess()
	err := windows.OpenProcessToken(proc, windows.TOKEN_ADJUST_PRIVILEGES|windows.TOKEN_QUERY, &token)
	if err != nil {
		return fmt.Errorf("OpenProcessToken: %w", err)
	}
	defer token.Close()

	var luid windows.LUID
	name, _ := windows.UTF16PtrFromString("SeIncreaseBasePriorityPrivilege")
	err = windows.LookupPrivilegeValue(nil, name, &luid)
	if err != nil {
		return fmt.Errorf("LookupPrivilegeValue(SeIncreaseBasePriorityPrivilege): %w", err)
	}

	type tokenPrivileges struct {
		PrivilegeCount uint32
		Privileges     [1]windows.LUIDAndAttributes
	}

	tp := tokenPrivileges{
		PrivilegeCount: 1,
		Privileges: [1]windows.LUIDAndAttributes{
			{Luid: luid, Attributes: windows.SE_PRIVILEGE_ENABLED},
		},
	}

	ret, _, lastErr := procAdjustTokenPrivileges.Call(
		uintptr(token),
		0,
		uintptr(unsafe.Pointer(&tp)),
		0, 0, 0,
	)
	if ret == 0 {
		return fmt.Errorf("AdjustTokenPrivileges: %w", lastErr)
	}
	if errno, ok := lastErr.(syscall.Errno); ok && errno == syscall.Errno(windows.ERROR_NOT_ALL_ASSIGNED) {
		return fmt.Errorf("SeIncreaseBasePriorityPrivilege not held by this token")
	}
	return nil
}

// setRealtimeGPUPriorityClass asks the kernel-mode display driver to schedule
// this process's GPU work in the realtime class.
func setRealtimeGPUPriorityClass() error {
	class := int32(schedulingPriorityClassRealtime)
	ret, _, _ := procSetSchedulingPriorityClass.Call(
		uintptr(windows.CurrentProcess()),
		uintptr(class),
	)
	// D3DKMT APIs return NTSTATUS; negative means failure.
	if int32(ret) < 0 {
		return fmt.Errorf("D3DKMTSetProcessSchedulingPriorityClass: NTSTATUS 0x%08X", uint32(ret))
	}
	return nil
}
