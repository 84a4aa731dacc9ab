package vm

import "math"

// buildHandlerTable populates the 256-slot dispatch table, one closure per
// valid (opcode, type) pair, the same shape as processor.cpp's constructor
// populating instructions_handlers_. Opcodes restricted to a single type
// (STORE, JUMP, JNS) only get that one slot; HALT never gets a slot at all
// since it is intercepted before dispatch.
func buildHandlerTable() [256]handlerFunc {
	var t [256]handlerFunc

	reg := func(op OpCode, tm TypeModifier, h handlerFunc) {
		t[dispatchKey(op, tm)] = h
	}

	for _, tm := range allTypes {
		reg(OpNope, tm, nopeHandler)
	}

	reg(OpAdd, TypeByte, addHandler[byte]())
	reg(OpAdd, TypeWord, addHandler[uint32]())
	reg(OpAdd, TypeSignedWord, addHandler[int32]())
	reg(OpAdd, TypeReal, addHandler[float32]())

	reg(OpSub, TypeByte, subHandler[byte]())
	reg(OpSub, TypeWord, subHandler[uint32]())
	reg(OpSub, TypeSignedWord, subHandler[int32]())
	reg(OpSub, TypeReal, subHandler[float32]())

	reg(OpMul, TypeByte, mulHandler[byte]())
	reg(OpMul, TypeWord, mulHandler[uint32]())
	reg(OpMul, TypeSignedWord, mulHandler[int32]())
	reg(OpMul, TypeReal, mulHandler[float32]())

	reg(OpDiv, TypeByte, divHandler[byte]())
	reg(OpDiv, TypeWord, divHandler[uint32]())
	reg(OpDiv, TypeSignedWord, divHandler[int32]())
	reg(OpDiv, TypeReal, divHandler[float32]())

	for _, tm := range allTypes {
		reg(OpMod, tm, modHandler(tm))
	}

	reg(OpLoad, TypeByte, loadHandler[byte]())
	reg(OpLoad, TypeWord, loadHandler[uint32]())
	reg(OpLoad, TypeSignedWord, loadHandler[int32]())
	reg(OpLoad, TypeReal, loadHandler[float32]())

	reg(OpStore, TypeWord, storeHandler)

	for _, tm := range allTypes {
		reg(OpInput, tm, inputHandler(tm))
		reg(OpOutput, tm, outputHandler(tm))
	}

	reg(OpJump, TypeWord, jumpHandler)

	reg(OpSkipLower, TypeByte, skipLowerHandler[byte]())
	reg(OpSkipLower, TypeWord, skipLowerHandler[uint32]())
	reg(OpSkipLower, TypeSignedWord, skipLowerHandler[int32]())
	reg(OpSkipLower, TypeReal, skipLowerHandler[float32]())

	reg(OpSkipGreater, TypeByte, skipGreaterHandler[byte]())
	reg(OpSkipGreater, TypeWord, skipGreaterHandler[uint32]())
	reg(OpSkipGreater, TypeSignedWord, skipGreaterHandler[int32]())
	reg(OpSkipGreater, TypeReal, skipGreaterHandler[float32]())

	reg(OpSkipEqual, TypeByte, skipEqualHandler[byte]())
	reg(OpSkipEqual, TypeWord, skipEqualHandler[uint32]())
	reg(OpSkipEqual, TypeSignedWord, skipEqualHandler[int32]())
	reg(OpSkipEqual, TypeReal, skipEqualHandler[float32]())

	reg(OpJumpAndStore, TypeWord, jnsHandler)

	return t
}

func nopeHandler(p *Processor) error {
	p.advance()
	return nil
}

func addHandler[T numeric]() handlerFunc {
	return func(p *Processor) error {
		p.setAcc(wordFrom(wordAs[T](p.getAcc()) + wordAs[T](p.getAux())))
		p.advance()
		return nil
	}
}

func subHandler[T numeric]() handlerFunc {
	return func(p *Processor) error {
		p.setAcc(wordFrom(wordAs[T](p.getAcc()) - wordAs[T](p.getAux())))
		p.advance()
		return nil
	}
}

func mulHandler[T numeric]() handlerFunc {
	return func(p *Processor) error {
		p.setAcc(wordFrom(wordAs[T](p.getAcc()) * wordAs[T](p.getAux())))
		p.advance()
		return nil
	}
}

func divHandler[T numeric]() handlerFunc {
	return func(p *Processor) error {
		b := wordAs[T](p.getAux())
		if b == 0 {
			return ErrArithmetic
		}
		a := wordAs[T](p.getAcc())
		p.setAcc(wordFrom(a / b))
		p.advance()
		return nil
	}
}

// modHandler is not generic: the % operator isn't defined for float32, so
// the Real case is split out to use math.Mod like processor.cpp's use of
// fmodf for the same reason.
func modHandler(tm TypeModifier) handlerFunc {
	return func(p *Processor) error {
		switch tm {
		case TypeByte:
			a, b := p.getAcc().Byte(), p.getAux().Byte()
			if b == 0 {
				return ErrArithmetic
			}
			p.setAcc(WordFromByte(a % b))
		case TypeWord:
			a, b := p.getAcc().Word(), p.getAux().Word()
			if b == 0 {
				return ErrArithmetic
			}
			p.setAcc(WordFromWord(a % b))
		case TypeSignedWord:
			a, b := p.getAcc().SignedWord(), p.getAux().SignedWord()
			if b == 0 {
				return ErrArithmetic
			}
			p.setAcc(WordFromSignedWord(a % b))
		case TypeReal:
			a, b := p.getAcc().Real(), p.getAux().Real()
			if b == 0 {
				return ErrArithmetic
			}
			p.setAcc(WordFromReal(float32(math.Mod(float64(a), float64(b)))))
		}
		p.advance()
		return nil
	}
}

func loadHandler[T numeric]() handlerFunc {
	return func(p *Processor) error {
		p.setAcc(wordFrom(wordAs[T](p.getAux())))
		p.advance()
		return nil
	}
}

func storeHandler(p *Processor) error {
	addr := p.getAux().Word()
	if err := p.memory.WriteArgument(p.getAcc(), addr); err != nil {
		return err
	}
	p.notifyMemoryChanged(Address(addr))
	p.advance()
	return nil
}

// inputHandler suspends the Processor until the IO collaborator's callback
// fires. Without an IO collaborator set, INPUT does nothing at all (no
// state change, no IP advance) — the same as processor.cpp's behavior when
// io_ is null, which effectively hangs the instruction rather than
// skipping it; a host is expected to always provide one before running.
func inputHandler(tm TypeModifier) handlerFunc {
	return func(p *Processor) error {
		io := p.getIO()
		if io == nil {
			return nil
		}
		p.setState(StatePausedByIO)
		io.InputRequest(tm, p.resumeFromInput)
		return nil
	}
}

func outputHandler(tm TypeModifier) handlerFunc {
	return func(p *Processor) error {
		if io := p.getIO(); io != nil {
			io.OutputRequest(p.getAcc(), tm)
		}
		p.advance()
		return nil
	}
}

func jumpHandler(p *Processor) error {
	p.setIP(Address(p.getAux().Word()))
	return nil
}

func skipLowerHandler[T numeric]() handlerFunc {
	return func(p *Processor) error {
		if wordAs[T](p.getAcc()) < wordAs[T](p.getAux()) {
			p.setIP(p.getIP() + 2)
		} else {
			p.advance()
		}
		return nil
	}
}

func skipGreaterHandler[T numeric]() handlerFunc {
	return func(p *Processor) error {
		if wordAs[T](p.getAcc()) > wordAs[T](p.getAux()) {
			p.setIP(p.getIP() + 2)
		} else {
			p.advance()
		}
		return nil
	}
}

func skipEqualHandler[T numeric]() handlerFunc {
	return func(p *Processor) error {
		if wordAs[T](p.getAcc()) == wordAs[T](p.getAux()) {
			p.setIP(p.getIP() + 2)
		} else {
			p.advance()
		}
		return nil
	}
}

// jnsHandler implements the jump-and-store subroutine-call idiom: the
// return address (the instruction after this one) is stashed at the
// target address, then execution continues one past it — deliberately
// letting code and data memory alias so the same memory cell that held the
// jump target now holds a return address a caller can jump back through.
func jnsHandler(p *Processor) error {
	target := p.getAux().Word()
	retAddr := p.getIP() + 1
	if err := p.memory.WriteArgument(WordFromWord(uint32(retAddr)), target); err != nil {
		return err
	}
	targetAddr := Address(target)
	p.notifyMemoryChanged(targetAddr)
	p.setIP(targetAddr + 1)
	return nil
}
