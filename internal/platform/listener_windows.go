//go:build windows

package platform

import (
	"context"
	"errors"
	"runtime"
	"syscall"
	"unsafe"

	"github.com/lxn/win"
	"go.uber.org/zap"
)

// Обёртки для функций, которых может не быть в lxn/win
var (
	user32                  = syscall.NewLazyDLL("user32.dll")
	procRegisterHotKey      = user32.NewProc("RegisterHotKey")
	procUnregisterHotKey    = user32.NewProc("UnregisterHotKey")
	procSetWindowsHookEx    = user32.NewProc("SetWindowsHookExW")
	procCallNextHookEx      = user32.NewProc("CallNextHookEx")
	procUnhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	procGetAsyncKeyState    = user32.NewProc("GetAsyncKeyState")
)

const (
	whKeyboardLL = 13
	wmKeyDown    = 0x0100
	wmKeyUp      = 0x0101
	wmSysKeyDown = 0x0104
	wmSysKeyUp   = 0x0105

	modAlt      = 0x0001
	modControl  = 0x0002
	modShift    = 0x0004
	modWin      = 0x0008
	modNoRepeat = 0x4000

	vkC      = 0x43
	vkInsert = 0x2D
	vkCtrl   = 0x11
	vkAlt    = 0x12
	vkLWin   = 0x5B
	vkRWin   = 0x5C

	overrideHotkeyID = 1
)

type kbdLLHookStruct struct {
	vkCode      uint32
	scanCode    uint32
	flags       uint32
	time        uint32
	dwExtraInfo uintptr
}

type winListener struct {
	override KeyCombo
	logger   *zap.SugaredLogger
}

// NewListener скрытое окно для хоткея ручного вызова и низкоуровневый хук клавиатуры для Ctrl+C.
// Хук только наблюдает: каждое событие передаётся дальше через CallNextHookEx.
func NewListener(override KeyCombo, logger *zap.SugaredLogger) Listener {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &winListener{override: override, logger: logger}
}

func (l *winListener) Run(ctx context.Context, h Handlers) error {
	// хук и окно живут в закреплённом системном потоке
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	className := syscall.StringToUTF16Ptr("ClipTranslatorHiddenWindowClass")

	var wc win.WNDCLASSEX
	wc.CbSize = uint32(unsafe.Sizeof(wc))
	wc.LpfnWndProc = syscall.NewCallback(func(hwnd win.HWND, msg uint32, wParam, lParam uintptr) uintptr {
		switch msg {
		case win.WM_HOTKEY:
			if wParam == overrideHotkeyID && h.OnOverride != nil {
				go h.OnOverride()
			}
			return 0
		case win.WM_DESTROY:
			win.PostQuitMessage(0)
			return 0
		}
		return win.DefWindowProc(hwnd, msg, wParam, lParam)
	})
	wc.HInstance = win.GetModuleHandle(nil)
	wc.LpszClassName = className
	_ = win.RegisterClassEx(&wc) // повторная регистрация класса не ошибка

	hwnd := win.CreateWindowEx(
		0,
		className,
		syscall.StringToUTF16Ptr("ClipTranslatorHiddenWindow"),
		0,
		0, 0, 0, 0,
		0,
		0,
		wc.HInstance,
		nil,
	)
	if hwnd == 0 {
		return errors.New("platform: CreateWindowEx failed")
	}

	if hook := l.installCopyHook(h.OnCopyCombo); hook != 0 {
		defer procUnhookWindowsHookEx.Call(hook)
	}
	if l.registerOverride(hwnd) {
		defer procUnregisterHotKey.Call(uintptr(hwnd), overrideHotkeyID)
	}

	stop := context.AfterFunc(ctx, func() {
		win.PostMessage(hwnd, win.WM_CLOSE, 0, 0)
	})
	defer stop()

	msg := new(win.MSG)
	for {
		r := win.GetMessage(msg, 0, 0, 0)
		if r == 0 || r == -1 { // WM_QUIT или ошибка
			break
		}
		win.TranslateMessage(msg)
		win.DispatchMessage(msg)
	}
	win.DestroyWindow(hwnd)
	return ctx.Err()
}

// installCopyHook ставит WH_KEYBOARD_LL. Ошибка не фатальна: детектор останется на опросе.
func (l *winListener) installCopyHook(onCopy func()) uintptr {
	if onCopy == nil {
		return 0
	}
	if err := procSetWindowsHookEx.Find(); err != nil {
		l.logger.Warnw("Keyboard hook unavailable", "error", err)
		return 0
	}

	copyDown := false
	proc := syscall.NewCallback(func(nCode, wParam, lParam uintptr) uintptr {
		if int32(nCode) >= 0 {
			kb := (*kbdLLHookStruct)(unsafe.Pointer(lParam))
			if kb.vkCode == vkC || kb.vkCode == vkInsert {
				switch wParam {
				case wmKeyDown, wmSysKeyDown:
					// автоповтор при удержании не считаем
					if !copyDown && isCopyModifiers() {
						copyDown = true
						onCopy()
					}
				case wmKeyUp, wmSysKeyUp:
					copyDown = false
				}
			}
		}
		r, _, _ := procCallNextHookEx.Call(0, nCode, wParam, lParam)
		return r
	})

	hook, _, err := procSetWindowsHookEx.Call(whKeyboardLL, proc, 0, 0)
	if hook == 0 {
		l.logger.Warnw("Failed to install keyboard hook", "error", err)
		return 0
	}
	return hook
}

func (l *winListener) registerOverride(hwnd win.HWND) bool {
	if l.override.Key == "" {
		return false
	}
	vk, err := VKCode(l.override.Key)
	if err != nil {
		l.logger.Warnw("Override hotkey not registered", "hotkey", l.override.String(), "error", err)
		return false
	}
	mods := uint32(modNoRepeat)
	if l.override.Ctrl {
		mods |= modControl
	}
	if l.override.Shift {
		mods |= modShift
	}
	if l.override.Alt {
		mods |= modAlt
	}
	if l.override.Win {
		mods |= modWin
	}
	if err := procRegisterHotKey.Find(); err != nil {
		l.logger.Warnw("Override hotkey not registered", "hotkey", l.override.String(), "error", err)
		return false
	}
	r, _, callErr := procRegisterHotKey.Call(uintptr(hwnd), overrideHotkeyID, uintptr(mods), uintptr(vk))
	if r == 0 {
		// чаще всего комбинация уже занята другим приложением
		l.logger.Warnw("Override hotkey not registered", "hotkey", l.override.String(), "error", callErr)
		return false
	}
	l.logger.Infow("Override hotkey registered", "hotkey", l.override.String())
	return true
}

// isCopyModifiers зажат Ctrl, но не Alt (AltGr) и не Win.
func isCopyModifiers() bool {
	return keyDown(vkCtrl) && !keyDown(vkAlt) && !keyDown(vkLWin) && !keyDown(vkRWin)
}

func keyDown(vk uintptr) bool {
	r, _, _ := procGetAsyncKeyState.Call(vk)
	return r&0x8000 != 0
}
