package input

// linuxKeyCodes maps virtual key codes to Linux input-event key codes
// (include/uapi/linux/input-event-codes.h).
var linuxKeyCodes = func() map[uint16]uint16 {
	codes := map[uint16]uint16{
		VKBack:    14,
		VKTab:     15,
		VKReturn:  28,
		VKShift:   42,
		VKControl: 29,
		VKMenu:    56,
		0x13:      119, // pause
		0x14:      58,  // caps lock
		VKEscape:  1,
		VKSpace:   57,
		0x21:      104, // page up
		0x22:      109, // page down
		0x23:      107, // end
		0x24:      102, // home
		VKLeft:    105,
		VKUp:      103,
		VKRight:   106,
		VKDown:    108,
		0x2C:      99,  // print screen
		0x2D:      110, // insert
		0x2E:      111, // delete
		0x30:      11,  // 0
		VKLWin:    125,
		0x5C:      126, // right win
		0x5D:      127, // apps
		0x60:      82,  // numpad 0
		0x61:      79,
		0x62:      80,
		0x63:      81,
		0x64:      75,
		0x65:      76,
		0x66:      77,
		0x67:      71,
		0x68:      72,
		0x69:      73,
		0x6A:      55, // multiply
		0x6B:      78, // add
		0x6D:      74, // subtract
		0x6E:      83, // decimal
		0x6F:      98, // divide
		0x90:      69, // num lock
		0x91:      70, // scroll lock
		0xA0:      42,
		0xA1:      54,
		0xA2:      29,
		0xA3:      97,
		0xA4:      56,
		0xA5:      100,
		0xAD:      113, // mute
		0xAE:      114, // volume down
		0xAF:      115, // volume up
		0xB0:      163, // next track
		0xB1:      165, // previous track
		0xB2:      166, // stop
		0xB3:      164, // play/pause
		0xBA:      39, // ;
		0xBB:      13, // =
		0xBC:      51, // ,
		0xBD:      12, // -
		0xBE:      52, // .
		0xBF:      53, // /
		0xC0:      41, // `
		0xDB:      26, // [
		0xDC:      43, // backslash
		0xDD:      27, // ]
		0xDE:      40, // '
	}

	// 1-9 sit on consecutive codes 2-10.
	for vk := uint16(0x31); vk <= 0x39; vk++ {
		codes[vk] = vk - 0x31 + 2
	}

	letters := []uint16{
		30, 48, 46, 32, 18, 33, 34, 35, 23, 36, 37, 38, 50, // A-M
		49, 24, 25, 16, 19, 31, 20, 22, 47, 17, 45, 21, 44, // N-Z
	}
	for i, code := range letters {
		codes[VKA+uint16(i)] = code
	}

	// F1-F10 are contiguous, F11/F12 are not, F13-F24 are contiguous again.
	for i := uint16(0); i < 10; i++ {
		codes[VKF1+i] = 59 + i
	}
	codes[VKF1+10] = 87
	codes[VKF1+11] = 88
	for i := uint16(12); i < 24; i++ {
		codes[VKF1+i] = 183 + i - 12
	}
	return codes
}()

// LinuxKeyCode translates a virtual key code to its Linux key code.
func LinuxKeyCode(virtualKeyCode uint16) (uint16, bool) {
	code, ok := linuxKeyCodes[virtualKeyCode]
	return code, ok
}
