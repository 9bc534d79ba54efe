package gocvseg

import (
	"fmt"

	"gocv.io/x/gocv"
)

// AllImageOps matches the morphology op strings applied to raw masks: e/d erode/dilate once,
// E/D ten times.
const AllImageOps = `^[edED]*$`

var opsByOpCode = map[byte]opFunc{
	'e': gocv.Erode,
	'd': gocv.Dilate,
	'E': nOps(10, gocv.Erode),
	'D': nOps(10, gocv.Dilate),
}

func UnknownImageOpErrMsg(knownOpsRegexp string) string {
	return fmt.Sprintf("imgop must match /%s/", knownOpsRegexp)
}

type opFunc func(src gocv.Mat, dst *gocv.Mat, kernel gocv.Mat)

func nOps(n int, op opFunc) opFunc {
	return func(src gocv.Mat, dst *gocv.Mat, kernel gocv.Mat) {
		for i := 0; i < n; i++ {
			op(src, dst, kernel)
		}
	}
}

func runOps(ops string, img *gocv.Mat, kernel *gocv.Mat) {
	for _, opCode := range ops {
		op, ok := opsByOpCode[byte(opCode)]
		if !ok {
			continue // Unknown opCode is a noop.
		}

		op(*img, img, *kernel)
	}
}
