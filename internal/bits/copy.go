package bits

// copyBits copies width bits from src starting at bit srcOff into dst starting
// at bit dstOff. Bits of dst outside [dstOff, dstOff+width) are left intact.
func copyBits(dst []byte, dstOff int, src []byte, srcOff int, width int) {
	if width <= 0 {
		return
	}

	end := dstOff + width
	first := dstOff / 8
	last := (end - 1) / 8
	headBits := dstOff % 8
	tailBits := end % 8

	if srcOff%8 == 0 && headBits == 0 {
		full := width / 8
		s := srcOff / 8
		copy(dst[first:first+full], src[s:s+full])
		if rem := width % 8; rem != 0 {
			mask := lowMask(rem)
			dst[first+full] = dst[first+full]&^mask | src[s+full]&mask
		}
		return
	}

	head := dst[first]
	tail := dst[last]
	clear(dst[first : last+1])

	for written := 0; written < width; {
		s := srcOff + written
		d := dstOff + written
		sBit := s % 8
		dBit := d % 8
		n := min(8-sBit, 8-dBit, width-written)

		chunk := (src[s/8] >> sBit) & lowMask(n)
		dst[d/8] |= chunk << dBit
		written += n
	}

	dst[first] |= head & lowMask(headBits)
	if tailBits != 0 {
		dst[last] |= tail &^ lowMask(tailBits)
	}
}
