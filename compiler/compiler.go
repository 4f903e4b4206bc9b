package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pyrite-lang/pyrite/vm"
)

// ---------------------------------------------------------------------------
// Compiler: single-pass source-to-bytecode translation
// ---------------------------------------------------------------------------

// Error is a compile-time diagnostic tied to a source line.
type Error struct {
	Line    int
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// ErrorList aggregates the diagnostics of one compilation.
type ErrorList []*Error

// Error implements the error interface.
func (l ErrorList) Error() string {
	parts := make([]string, len(l))
	for i, e := range l {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "\n")
}

// bailout aborts the current statement after an error; the compiler
// recovers and resynchronizes at the next statement boundary.
type bailout struct{}

// maxCallArgs bounds a call's positional arguments to what the 8-bit argc
// operand can carry.
const maxCallArgs = 255

// local tracks one frame slot. Slot 0 is the callee itself; parameters and
// declared variables follow.
type local struct {
	name string
	slot int
}

// upvalue pairs a captured name with its runtime descriptor.
type upvalue struct {
	name string
	desc vm.UpvalueDesc
}

// funcScope is the per-function compilation state. The script body is
// compiled in a funcScope too, with isScript set: its named variables are
// globals, and only synthetic iterator slots become frame locals.
type funcScope struct {
	enclosing *funcScope
	b         *vm.ChunkBuilder

	name     string
	qualName string
	isScript bool

	arity      int
	defaults   []vm.Value
	paramNames []string
	paramTypes []string
	returnType string
	doc        string

	locals    []local
	upvalues  []upvalue
	nonlocals map[string]bool
}

func newFuncScope(enclosing *funcScope, name, qualName string) *funcScope {
	fs := &funcScope{
		enclosing: enclosing,
		b:         vm.NewChunkBuilder(),
		name:      name,
		qualName:  qualName,
		nonlocals: make(map[string]bool),
	}
	// Slot 0 belongs to the callee and is never addressable by name.
	fs.locals = append(fs.locals, local{name: "", slot: 0})
	return fs
}

// resolveLocal finds a named slot in this scope.
func (fs *funcScope) resolveLocal(name string) (int, bool) {
	for i := len(fs.locals) - 1; i >= 1; i-- {
		if fs.locals[i].name == name && fs.locals[i].name != "" {
			return fs.locals[i].slot, true
		}
	}
	return 0, false
}

// addUpvalue records a capture, reusing an identical existing entry.
func (fs *funcScope) addUpvalue(name string, isLocal bool, index int) int {
	for i, uv := range fs.upvalues {
		if uv.desc.IsLocal == isLocal && int(uv.desc.Index) == index {
			return i
		}
	}
	fs.upvalues = append(fs.upvalues, upvalue{
		name: name,
		desc: vm.UpvalueDesc{IsLocal: isLocal, Index: uint16(index)},
	})
	return len(fs.upvalues) - 1
}

// loopContext tracks the jump targets of an enclosing loop.
type loopContext struct {
	continueTarget int
	breakJumps     []int
}

// Compiler turns a token stream into a chunk in a single pass.
type Compiler struct {
	tokens []Token
	pos    int
	prev   Token

	module    string
	scope     *funcScope
	loops     []*loopContext
	className string // non-empty while compiling a class body
	errors    ErrorList
	lineEnded bool // whether the last statement terminator ended its line
}

// Compile translates source into a root chunk, or returns an ErrorList.
func Compile(source string) (*vm.Chunk, error) {
	return CompileModule(source, "<script>")
}

// CompileModule is Compile with an explicit module name for function
// introspection metadata.
func CompileModule(source, module string) (*vm.Chunk, error) {
	c := &Compiler{
		tokens: NewLexer(source).Tokens(),
		module: module,
		scope:  newFuncScope(nil, "<script>", "<script>"),
	}
	c.scope.isScript = true

	for !c.check(TokenEOF) {
		c.statement()
	}
	line := c.cur().Line
	c.emitOpAt(line, vm.OpNil)
	c.emitOpAt(line, vm.OpReturn)

	if len(c.errors) > 0 {
		return nil, c.errors
	}
	chunk := c.scope.b.Chunk()
	prependLocalsPrologue(chunk, c.scope.localCount())
	return chunk, nil
}

// localCount returns the number of frame slots beyond the callee and the
// declared parameters.
func (fs *funcScope) localCount() int {
	return len(fs.locals) - 1 - fs.arity
}

// prependLocalsPrologue reserves the scope's local slots by pushing one Nil
// per slot ahead of the body. Jump offsets are relative, so inserting at the
// front is safe; every declared local is then a plain OpSetLocal target,
// which keeps re-executed declaration sites (loop bodies, branches) from
// disturbing the stack.
func prependLocalsPrologue(chunk *vm.Chunk, count int) {
	if count <= 0 {
		return
	}
	line := 1
	if len(chunk.Lines) > 0 {
		line = chunk.Lines[0]
	}
	code := make([]byte, count, count+len(chunk.Code))
	lines := make([]int, count, count+len(chunk.Lines))
	for i := 0; i < count; i++ {
		code[i] = byte(vm.OpNil)
		lines[i] = line
	}
	chunk.Code = append(code, chunk.Code...)
	chunk.Lines = append(lines, chunk.Lines...)
}

// ---------------------------------------------------------------------------
// Token stream helpers
// ---------------------------------------------------------------------------

func (c *Compiler) cur() Token {
	return c.tokens[c.pos]
}

func (c *Compiler) peek() Token {
	if c.pos+1 < len(c.tokens) {
		return c.tokens[c.pos+1]
	}
	return c.tokens[len(c.tokens)-1]
}

func (c *Compiler) advance() Token {
	tok := c.tokens[c.pos]
	if tok.Type == TokenError {
		c.errorAt(tok.Line, "%s", tok.Literal)
	}
	c.prev = tok
	if c.pos < len(c.tokens)-1 {
		c.pos++
	}
	return tok
}

func (c *Compiler) check(t TokenType) bool {
	return c.cur().Type == t
}

func (c *Compiler) match(t TokenType) bool {
	if !c.check(t) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) expect(t TokenType, context string) Token {
	if !c.check(t) {
		c.errorAt(c.cur().Line, "expected %s %s, found %s", t, context, c.cur())
	}
	return c.advance()
}

// errorAt records a diagnostic and abandons the current statement.
func (c *Compiler) errorAt(line int, format string, args ...any) {
	c.errors = append(c.errors, &Error{Line: line, Message: fmt.Sprintf(format, args...)})
	panic(bailout{})
}

// synchronize skips forward to the next statement boundary after an error.
func (c *Compiler) synchronize() {
	for {
		switch c.cur().Type {
		case TokenEOF:
			return
		case TokenNewline, TokenSemicolon, TokenIndent, TokenDedent:
			c.advance()
			if c.cur().Type != TokenIndent && c.cur().Type != TokenDedent &&
				c.cur().Type != TokenNewline {
				return
			}
		default:
			c.advance()
		}
	}
}

// ---------------------------------------------------------------------------
// Emission helpers
// ---------------------------------------------------------------------------

func (c *Compiler) b() *vm.ChunkBuilder { return c.scope.b }

func (c *Compiler) line() int { return c.prev.Line }

func (c *Compiler) emitOp(op vm.Opcode) { c.b().Emit(c.line(), op) }

func (c *Compiler) emitOpAt(line int, op vm.Opcode) { c.b().Emit(line, op) }

func (c *Compiler) emitByte(op vm.Opcode, operand byte) {
	c.b().EmitByte(c.line(), op, operand)
}

func (c *Compiler) emitU16(op vm.Opcode, operand uint16) {
	c.b().EmitU16(c.line(), op, operand)
}

func (c *Compiler) emitJump(op vm.Opcode) int {
	return c.b().EmitJump(c.line(), op)
}

func (c *Compiler) patchJump(pos int) {
	if err := c.b().PatchJump(pos); err != nil {
		c.errorAt(c.line(), "%s", err)
	}
}

func (c *Compiler) emitLoop(target int) {
	if err := c.b().EmitLoop(c.line(), target); err != nil {
		c.errorAt(c.line(), "%s", err)
	}
}

func (c *Compiler) emitConstant(op vm.Opcode, v vm.Value) {
	if err := c.b().EmitConstant(c.line(), op, v); err != nil {
		c.errorAt(c.line(), "%s", err)
	}
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// statement compiles one statement, recovering from compile errors at the
// statement boundary.
func (c *Compiler) statement() {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(bailout); ok {
				c.synchronize()
				return
			}
			panic(r)
		}
	}()
	c.parseStatement()
}

func (c *Compiler) parseStatement() {
	c.lineEnded = true
	switch c.cur().Type {
	case TokenNewline, TokenSemicolon:
		c.advance()
	case TokenIndent:
		c.errorAt(c.cur().Line, "unexpected indent")
	case TokenPrint:
		c.printStatement()
	case TokenIf:
		c.ifStatement()
	case TokenWhile:
		c.whileStatement()
	case TokenFor:
		c.forStatement()
	case TokenDef:
		c.defStatement(true)
	case TokenClass:
		c.classStatement()
	case TokenReturn:
		c.returnStatement()
	case TokenBreak:
		c.breakStatement()
	case TokenContinue:
		c.continueStatement()
	case TokenPass:
		c.advance()
		c.endOfStatement()
	case TokenNonlocal:
		c.nonlocalStatement()
	default:
		c.expressionStatement()
	}
}

// endOfStatement consumes a statement terminator and records whether it
// ended the physical line (a semicolon chains another statement).
func (c *Compiler) endOfStatement() {
	switch {
	case c.match(TokenSemicolon):
		c.lineEnded = c.match(TokenNewline)
	case c.match(TokenNewline):
		c.lineEnded = true
	case c.check(TokenEOF), c.check(TokenDedent):
		c.lineEnded = true
	default:
		c.errorAt(c.cur().Line, "expected end of statement, found %s", c.cur())
	}
}

// suite compiles an indented block, or an inline simple-statement list
// after the colon.
func (c *Compiler) suite() {
	c.expect(TokenColon, "before block")
	if c.match(TokenNewline) {
		c.expect(TokenIndent, "to start block")
		for !c.check(TokenDedent) && !c.check(TokenEOF) {
			c.statement()
		}
		c.match(TokenDedent)
		return
	}
	// Inline suite: one or more simple statements on the header line.
	for {
		c.statement()
		if c.lineEnded {
			return
		}
	}
}

// printStatement compiles print(...): every argument but the last prints
// with a trailing space, then a newline ends the line.
func (c *Compiler) printStatement() {
	c.advance()
	c.expect(TokenLParen, "after 'print'")
	if !c.check(TokenRParen) {
		for {
			c.expression()
			if c.match(TokenComma) && !c.check(TokenRParen) {
				c.emitOp(vm.OpPrintSpaced)
				continue
			}
			c.emitOp(vm.OpPrint)
			break
		}
	}
	c.expect(TokenRParen, "after print arguments")
	c.emitOp(vm.OpPrintln)
	c.endOfStatement()
}

func (c *Compiler) ifStatement() {
	c.advance()
	var endJumps []int
	for {
		c.expression()
		skip := c.emitJump(vm.OpJumpIfFalse)
		c.emitOp(vm.OpPop)
		c.suite()
		endJumps = append(endJumps, c.emitJump(vm.OpJump))
		c.patchJump(skip)
		c.emitOp(vm.OpPop)
		if c.match(TokenElif) {
			continue
		}
		if c.match(TokenElse) {
			c.suite()
		}
		break
	}
	for _, j := range endJumps {
		c.patchJump(j)
	}
}

func (c *Compiler) whileStatement() {
	c.advance()
	loopStart := c.b().Len()
	c.expression()
	exit := c.emitJump(vm.OpJumpIfFalse)
	c.emitOp(vm.OpPop)

	c.loops = append(c.loops, &loopContext{continueTarget: loopStart})
	c.suite()
	ctx := c.loops[len(c.loops)-1]
	c.loops = c.loops[:len(c.loops)-1]

	c.emitLoop(loopStart)
	c.patchJump(exit)
	c.emitOp(vm.OpPop)
	for _, j := range ctx.breakJumps {
		c.patchJump(j)
	}
}

// forStatement compiles `for VAR in EXPR:`. The iterable and cursor live in
// two synthetic frame slots, so the loop body sees an empty operand stack
// and may introduce fresh locals.
func (c *Compiler) forStatement() {
	c.advance()
	nameTok := c.expect(TokenIdentifier, "as loop variable")
	name := nameTok.Literal
	c.expect(TokenIn, "after loop variable")

	// Bind the loop variable before the header so the body and later code
	// address a stable slot (or global).
	varSlot, varIsLocal := -1, false
	if c.scope.isScript {
		c.emitOp(vm.OpNil)
		c.emitConstant(vm.OpDefineGlobal, vm.FromStr(name))
	} else if slot, ok := c.scope.resolveLocal(name); ok {
		varSlot, varIsLocal = slot, true
	} else {
		varSlot, varIsLocal = c.declareLocal(name), true
	}

	// Header: the iterable and cursor settle into synthetic slots, so the
	// loop body runs over an empty operand stack.
	iterSlot := c.declareLocal("")
	cursorSlot := c.declareLocal("")
	c.expression()
	c.emitByte(vm.OpSetLocal, byte(iterSlot))
	c.emitOp(vm.OpPop)
	c.emitConstant(vm.OpConstant, vm.FromInt(0))
	c.emitByte(vm.OpSetLocal, byte(cursorSlot))
	c.emitOp(vm.OpPop)

	loopStart := c.b().Len()
	c.emitByte(vm.OpGetLocal, byte(iterSlot))
	c.emitByte(vm.OpGetLocal, byte(cursorSlot))
	exit := c.emitJump(vm.OpIterNext)

	// Produced [iterable, cursor, element]: store all three back.
	if varIsLocal {
		c.emitByte(vm.OpSetLocal, byte(varSlot))
	} else {
		c.emitConstant(vm.OpSetGlobal, vm.FromStr(name))
	}
	c.emitOp(vm.OpPop)
	c.emitByte(vm.OpSetLocal, byte(cursorSlot))
	c.emitOp(vm.OpPop)
	c.emitByte(vm.OpSetLocal, byte(iterSlot))
	c.emitOp(vm.OpPop)

	c.loops = append(c.loops, &loopContext{continueTarget: loopStart})
	c.suite()
	ctx := c.loops[len(c.loops)-1]
	c.loops = c.loops[:len(c.loops)-1]

	c.emitLoop(loopStart)
	c.patchJump(exit)
	for _, j := range ctx.breakJumps {
		c.patchJump(j)
	}
}

func (c *Compiler) breakStatement() {
	tok := c.advance()
	if len(c.loops) == 0 {
		c.errorAt(tok.Line, "'break' outside loop")
	}
	ctx := c.loops[len(c.loops)-1]
	ctx.breakJumps = append(ctx.breakJumps, c.emitJump(vm.OpJump))
	c.endOfStatement()
}

func (c *Compiler) continueStatement() {
	tok := c.advance()
	if len(c.loops) == 0 {
		c.errorAt(tok.Line, "'continue' not properly in loop")
	}
	c.emitLoop(c.loops[len(c.loops)-1].continueTarget)
	c.endOfStatement()
}

func (c *Compiler) returnStatement() {
	tok := c.advance()
	if c.scope.isScript {
		c.errorAt(tok.Line, "'return' outside function")
	}
	if c.check(TokenNewline) || c.check(TokenSemicolon) ||
		c.check(TokenEOF) || c.check(TokenDedent) {
		c.emitOp(vm.OpNil)
	} else {
		c.expression()
	}
	c.emitOp(vm.OpReturn)
	c.endOfStatement()
}

func (c *Compiler) nonlocalStatement() {
	tok := c.advance()
	if c.scope.isScript {
		c.errorAt(tok.Line, "nonlocal declaration not allowed at module level")
	}
	for {
		name := c.expect(TokenIdentifier, "after 'nonlocal'")
		c.scope.nonlocals[name.Literal] = true
		if !c.match(TokenComma) {
			break
		}
	}
	c.endOfStatement()
}

// expressionStatement handles plain expressions and assignments whose
// target is a bare name; attribute and index targets are handled inside the
// expression parser.
func (c *Compiler) expressionStatement() {
	if c.check(TokenIdentifier) {
		switch c.peek().Type {
		case TokenAssign:
			name := c.advance().Literal
			c.advance()
			c.expression()
			c.assignVariable(name)
			c.endOfStatement()
			return
		case TokenPlusAssign, TokenMinusAssign, TokenStarAssign:
			name := c.advance().Literal
			op := c.advance().Type
			c.loadVariable(name)
			c.expression()
			c.emitOp(augmentedOp(op))
			c.storeVariable(name)
			c.emitOp(vm.OpPop)
			c.endOfStatement()
			return
		}
	}
	c.parsePrecedence(precOr, true)
	c.emitOp(vm.OpPop)
	c.endOfStatement()
}

func augmentedOp(t TokenType) vm.Opcode {
	switch t {
	case TokenPlusAssign:
		return vm.OpAdd
	case TokenMinusAssign:
		return vm.OpSubtract
	default:
		return vm.OpMultiply
	}
}

// ---------------------------------------------------------------------------
// Variable binding and resolution
// ---------------------------------------------------------------------------

// declareLocal reserves the next frame slot for name (empty for synthetic
// slots). The slot itself is materialized by the scope's Nil prologue; the
// declaration site stores into it with OpSetLocal.
func (c *Compiler) declareLocal(name string) int {
	slot := len(c.scope.locals)
	if slot >= 256 {
		c.errorAt(c.line(), "too many local variables in function")
	}
	c.scope.locals = append(c.scope.locals, local{name: name, slot: slot})
	return slot
}

// resolveUpvalue searches enclosing function scopes for name and threads a
// capture chain down to the current scope, returning the upvalue index.
func (c *Compiler) resolveUpvalue(fs *funcScope, name string) (int, bool) {
	if fs.enclosing == nil || fs.enclosing.isScript {
		// Script-level names are globals, never captured.
		return 0, false
	}
	if slot, ok := fs.enclosing.resolveLocal(name); ok {
		return fs.addUpvalue(name, true, slot), true
	}
	if idx, ok := c.resolveUpvalue(fs.enclosing, name); ok {
		return fs.addUpvalue(name, false, idx), true
	}
	return 0, false
}

// assignVariable compiles the store for `name = <value on stack>`,
// declaring a new local at first assignment inside a function.
func (c *Compiler) assignVariable(name string) {
	if !c.scope.isScript {
		if c.scope.nonlocals[name] {
			if idx, ok := c.resolveUpvalue(c.scope, name); ok {
				c.emitByte(vm.OpSetUpvalue, byte(idx))
				c.emitOp(vm.OpPop)
				return
			}
			c.errorAt(c.line(), "no binding for nonlocal '%s' found", name)
		}
		if slot, ok := c.scope.resolveLocal(name); ok {
			c.emitByte(vm.OpSetLocal, byte(slot))
			c.emitOp(vm.OpPop)
			return
		}
		// First assignment declares the local.
		slot := c.declareLocal(name)
		c.emitByte(vm.OpSetLocal, byte(slot))
		c.emitOp(vm.OpPop)
		return
	}
	c.emitConstant(vm.OpDefineGlobal, vm.FromStr(name))
}

// storeVariable compiles the store for an already-bound name, leaving the
// assigned value on the stack (every Set opcode peeks).
func (c *Compiler) storeVariable(name string) {
	if !c.scope.isScript {
		if c.scope.nonlocals[name] {
			if idx, ok := c.resolveUpvalue(c.scope, name); ok {
				c.emitByte(vm.OpSetUpvalue, byte(idx))
				return
			}
			c.errorAt(c.line(), "no binding for nonlocal '%s' found", name)
		}
		if slot, ok := c.scope.resolveLocal(name); ok {
			c.emitByte(vm.OpSetLocal, byte(slot))
			return
		}
		if idx, ok := c.resolveUpvalue(c.scope, name); ok {
			c.emitByte(vm.OpSetUpvalue, byte(idx))
			return
		}
	}
	c.emitConstant(vm.OpSetGlobal, vm.FromStr(name))
}

// loadVariable compiles a read of name: local, then captured, then global.
func (c *Compiler) loadVariable(name string) {
	if !c.scope.isScript {
		if slot, ok := c.scope.resolveLocal(name); ok && !c.scope.nonlocals[name] {
			c.emitByte(vm.OpGetLocal, byte(slot))
			return
		}
		if idx, ok := c.resolveUpvalue(c.scope, name); ok {
			c.emitByte(vm.OpGetUpvalue, byte(idx))
			return
		}
	}
	c.emitConstant(vm.OpGetGlobal, vm.FromStr(name))
}

// ---------------------------------------------------------------------------
// Functions and classes
// ---------------------------------------------------------------------------

// defStatement compiles a function definition. With bind set the resulting
// closure is bound to its name; a class body leaves it on the stack for
// OpMakeClass.
func (c *Compiler) defStatement(bind bool) {
	c.advance()
	nameTok := c.expect(TokenIdentifier, "after 'def'")
	name := nameTok.Literal

	qualName := name
	switch {
	case c.className != "":
		qualName = c.className + "." + name
	case !c.scope.isScript:
		qualName = c.scope.qualName + ".<locals>." + name
	}

	fs := newFuncScope(c.scope, name, qualName)
	c.scope = fs
	enclosingClass := c.className
	c.className = ""

	c.expect(TokenLParen, "after function name")
	seenDefault := false
	if !c.check(TokenRParen) {
		for {
			param := c.expect(TokenIdentifier, "as parameter name")
			paramType := ""
			if c.match(TokenColon) {
				paramType = c.typeAnnotation()
			}
			if c.match(TokenAssign) {
				seenDefault = true
				fs.defaults = append(fs.defaults, c.literalValue())
			} else if seenDefault {
				c.errorAt(param.Line, "parameter without a default follows parameter with a default")
			}
			fs.arity++
			fs.paramNames = append(fs.paramNames, param.Literal)
			fs.paramTypes = append(fs.paramTypes, paramType)
			c.declareLocal(param.Literal)
			if !c.match(TokenComma) {
				break
			}
		}
	}
	c.expect(TokenRParen, "after parameters")
	if c.match(TokenArrow) {
		fs.returnType = c.typeAnnotation()
	}
	if fs.arity > maxCallArgs {
		c.errorAt(nameTok.Line, "function has more than %d parameters", maxCallArgs)
	}

	c.functionBody(fs)

	// Implicit return None.
	c.emitOp(vm.OpNil)
	c.emitOp(vm.OpReturn)

	c.scope = fs.enclosing
	c.className = enclosingClass

	prependLocalsPrologue(fs.b.Chunk(), fs.localCount())

	descs := make([]vm.UpvalueDesc, len(fs.upvalues))
	for i, uv := range fs.upvalues {
		descs[i] = uv.desc
	}
	proto := &vm.Proto{
		Name:       name,
		Arity:      fs.arity,
		Defaults:   fs.defaults,
		Chunk:      fs.b.Chunk(),
		Upvalues:   descs,
		QualName:   qualName,
		Doc:        fs.doc,
		ParamNames: fs.paramNames,
		ParamTypes: fs.paramTypes,
		ReturnType: fs.returnType,
		Module:     c.module,
	}
	c.emitConstant(vm.OpMakeFunction, vm.FromProto(proto))

	if !bind {
		return
	}
	c.bindName(name)
}

// bindName stores the value on top of the stack under name in the current
// scope.
func (c *Compiler) bindName(name string) {
	if c.scope.isScript {
		c.emitConstant(vm.OpDefineGlobal, vm.FromStr(name))
		return
	}
	slot, ok := c.scope.resolveLocal(name)
	if !ok {
		slot = c.declareLocal(name)
	}
	c.emitByte(vm.OpSetLocal, byte(slot))
	c.emitOp(vm.OpPop)
}

// functionBody compiles the suite of a def, capturing a leading docstring.
func (c *Compiler) functionBody(fs *funcScope) {
	c.expect(TokenColon, "before function body")
	if c.match(TokenNewline) {
		c.expect(TokenIndent, "to start function body")
		if c.check(TokenDocstring) {
			fs.doc = c.advance().Literal
			c.endOfStatement()
		}
		for !c.check(TokenDedent) && !c.check(TokenEOF) {
			c.statement()
		}
		c.match(TokenDedent)
		return
	}
	for {
		c.statement()
		if c.lineEnded {
			return
		}
	}
}

// typeAnnotation consumes a type name.
func (c *Compiler) typeAnnotation() string {
	switch c.cur().Type {
	case TokenIdentifier:
		return c.advance().Literal
	case TokenNone:
		c.advance()
		return "None"
	}
	c.errorAt(c.cur().Line, "expected type name, found %s", c.cur())
	return ""
}

// literalValue evaluates a compile-time constant expression, as allowed in
// parameter defaults.
func (c *Compiler) literalValue() vm.Value {
	neg := false
	if c.match(TokenMinus) {
		neg = true
	}
	tok := c.advance()
	switch tok.Type {
	case TokenInt:
		n, err := strconv.ParseInt(tok.Literal, 10, 64)
		if err != nil {
			c.errorAt(tok.Line, "integer literal out of range")
		}
		if neg {
			n = -n
		}
		return vm.FromInt(n)
	case TokenFloat:
		f, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			c.errorAt(tok.Line, "invalid float literal")
		}
		if neg {
			f = -f
		}
		return vm.FromFloat(f)
	case TokenString, TokenDocstring:
		if neg {
			c.errorAt(tok.Line, "bad operand type for unary -")
		}
		return vm.FromStr(tok.Literal)
	case TokenTrue:
		return vm.True
	case TokenFalse:
		return vm.False
	case TokenNone:
		return vm.Nil
	}
	c.errorAt(tok.Line, "default value must be a literal, found %s", tok)
	return vm.Nil
}

// classStatement compiles a class definition: each method's closure and
// name are stacked, then OpMakeClass assembles the class, then an optional
// parent link is attached.
func (c *Compiler) classStatement() {
	c.advance()
	nameTok := c.expect(TokenIdentifier, "after 'class'")
	name := nameTok.Literal

	parent := ""
	if c.match(TokenLParen) {
		if !c.check(TokenRParen) {
			parent = c.expect(TokenIdentifier, "as parent class").Literal
		}
		c.expect(TokenRParen, "after parent class")
	}

	c.expect(TokenColon, "before class body")
	c.expect(TokenNewline, "before class body")
	c.expect(TokenIndent, "to start class body")

	enclosingClass := c.className
	c.className = name

	methodCount := 0
	for !c.check(TokenDedent) && !c.check(TokenEOF) {
		switch c.cur().Type {
		case TokenNewline:
			c.advance()
		case TokenPass:
			c.advance()
			c.endOfStatement()
		case TokenDocstring:
			c.advance()
			c.endOfStatement()
		case TokenDef:
			methodName := c.peek().Literal
			c.defStatement(false)
			c.emitConstant(vm.OpConstant, vm.FromStr(methodName))
			methodCount++
			if methodCount > 255 {
				c.errorAt(c.line(), "class has more than 255 methods")
			}
		default:
			c.errorAt(c.cur().Line, "only method definitions are allowed in a class body, found %s", c.cur())
		}
	}
	c.match(TokenDedent)
	c.className = enclosingClass

	c.emitConstant(vm.OpConstant, vm.FromStr(name))
	c.emitByte(vm.OpMakeClass, byte(methodCount))

	if parent != "" {
		c.loadVariable(parent)
		c.emitOp(vm.OpInherit)
	}
	c.bindName(name)
}

// ---------------------------------------------------------------------------
// Expressions (Pratt precedence)
// ---------------------------------------------------------------------------

type precedence int

const (
	precNone precedence = iota
	precOr
	precAnd
	precNot
	precComparison
	precTerm
	precFactor
	precUnary
	precCall
)

// infixPrecedence returns the binding power of the current token as an
// infix or postfix operator.
func (c *Compiler) infixPrecedence() precedence {
	switch c.cur().Type {
	case TokenOr:
		return precOr
	case TokenAnd:
		return precAnd
	case TokenEqual, TokenNotEqual, TokenLess, TokenGreater,
		TokenLessEqual, TokenGreaterEqual, TokenIn:
		return precComparison
	case TokenNot:
		// `not in` is a two-token comparison operator.
		if c.peek().Type == TokenIn {
			return precComparison
		}
	case TokenPlus, TokenMinus:
		return precTerm
	case TokenStar, TokenSlash, TokenPercent:
		return precFactor
	case TokenLParen, TokenDot, TokenLBracket:
		return precCall
	}
	return precNone
}

// expression compiles a non-assigning expression.
func (c *Compiler) expression() {
	c.parsePrecedence(precOr, false)
}

func (c *Compiler) parsePrecedence(prec precedence, canAssign bool) {
	c.prefix(canAssign)
	for {
		opPrec := c.infixPrecedence()
		if opPrec < prec || opPrec == precNone {
			return
		}
		c.infix(opPrec, canAssign)
	}
}

func (c *Compiler) prefix(canAssign bool) {
	tok := c.cur()
	switch tok.Type {
	case TokenInt:
		c.advance()
		n, err := strconv.ParseInt(tok.Literal, 10, 64)
		if err != nil {
			// Too large for an int: fall back to the float reading.
			f, ferr := strconv.ParseFloat(tok.Literal, 64)
			if ferr != nil {
				c.errorAt(tok.Line, "invalid number literal")
			}
			c.emitConstant(vm.OpConstant, vm.FromFloat(f))
			return
		}
		c.emitConstant(vm.OpConstant, vm.FromInt(n))

	case TokenFloat:
		c.advance()
		f, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			c.errorAt(tok.Line, "invalid float literal")
		}
		c.emitConstant(vm.OpConstant, vm.FromFloat(f))

	case TokenString, TokenDocstring:
		c.advance()
		c.emitConstant(vm.OpConstant, vm.FromStr(tok.Literal))

	case TokenTrue:
		c.advance()
		c.emitOp(vm.OpTrue)

	case TokenFalse:
		c.advance()
		c.emitOp(vm.OpFalse)

	case TokenNone:
		c.advance()
		c.emitOp(vm.OpNil)

	case TokenIdentifier:
		c.advance()
		c.identifierExpr(tok.Literal)

	case TokenLParen:
		c.advance()
		c.expression()
		c.expect(TokenRParen, "after expression")

	case TokenLBracket:
		c.advance()
		c.listLiteral()

	case TokenLBrace:
		c.advance()
		c.dictLiteral()

	case TokenMinus:
		c.advance()
		c.parsePrecedence(precUnary, false)
		c.emitOp(vm.OpNegate)

	case TokenNot:
		c.advance()
		c.parsePrecedence(precNot, false)
		c.emitOp(vm.OpNot)

	default:
		c.errorAt(tok.Line, "expected expression, found %s", tok)
	}
}

// identifierExpr compiles a name in expression position. len() and range()
// at call position lower directly to their opcodes.
func (c *Compiler) identifierExpr(name string) {
	if c.check(TokenLParen) && !c.isBound(name) {
		switch name {
		case "len":
			c.advance()
			c.expression()
			c.expect(TokenRParen, "after len() argument")
			c.emitOp(vm.OpLen)
			return
		case "range":
			c.advance()
			argc := 0
			for !c.check(TokenRParen) {
				c.expression()
				argc++
				if !c.match(TokenComma) {
					break
				}
			}
			c.expect(TokenRParen, "after range() arguments")
			if argc < 1 || argc > 3 {
				c.errorAt(c.line(), "range() takes from 1 to 3 arguments but %d were given", argc)
			}
			c.emitByte(vm.OpRange, byte(argc))
			return
		}
	}
	c.loadVariable(name)
}

// isBound reports whether name resolves to a local or captured variable,
// which shadows the builtin lowerings.
func (c *Compiler) isBound(name string) bool {
	if c.scope.isScript {
		return false
	}
	if _, ok := c.scope.resolveLocal(name); ok {
		return true
	}
	_, ok := c.resolveUpvalue(c.scope, name)
	return ok
}

func (c *Compiler) infix(opPrec precedence, canAssign bool) {
	tok := c.advance()
	switch tok.Type {
	case TokenOr:
		// Falsy left: fall through to evaluate the right side.
		elseJump := c.emitJump(vm.OpJumpIfFalse)
		endJump := c.emitJump(vm.OpJump)
		c.patchJump(elseJump)
		c.emitOp(vm.OpPop)
		c.parsePrecedence(opPrec+1, false)
		c.patchJump(endJump)

	case TokenAnd:
		endJump := c.emitJump(vm.OpJumpIfFalse)
		c.emitOp(vm.OpPop)
		c.parsePrecedence(opPrec+1, false)
		c.patchJump(endJump)

	case TokenEqual:
		c.parsePrecedence(opPrec+1, false)
		c.emitOp(vm.OpEqual)
	case TokenNotEqual:
		c.parsePrecedence(opPrec+1, false)
		c.emitOp(vm.OpEqual)
		c.emitOp(vm.OpNot)
	case TokenLess:
		c.parsePrecedence(opPrec+1, false)
		c.emitOp(vm.OpLess)
	case TokenGreater:
		c.parsePrecedence(opPrec+1, false)
		c.emitOp(vm.OpGreater)
	case TokenLessEqual:
		c.parsePrecedence(opPrec+1, false)
		c.emitOp(vm.OpGreater)
		c.emitOp(vm.OpNot)
	case TokenGreaterEqual:
		c.parsePrecedence(opPrec+1, false)
		c.emitOp(vm.OpLess)
		c.emitOp(vm.OpNot)
	case TokenIn:
		c.parsePrecedence(opPrec+1, false)
		c.emitOp(vm.OpContains)
	case TokenNot:
		c.expect(TokenIn, "after 'not' in comparison")
		c.parsePrecedence(opPrec+1, false)
		c.emitOp(vm.OpContains)
		c.emitOp(vm.OpNot)

	case TokenPlus:
		c.parsePrecedence(opPrec+1, false)
		c.emitOp(vm.OpAdd)
	case TokenMinus:
		c.parsePrecedence(opPrec+1, false)
		c.emitOp(vm.OpSubtract)
	case TokenStar:
		c.parsePrecedence(opPrec+1, false)
		c.emitOp(vm.OpMultiply)
	case TokenSlash:
		c.parsePrecedence(opPrec+1, false)
		c.emitOp(vm.OpDivide)
	case TokenPercent:
		c.parsePrecedence(opPrec+1, false)
		c.emitOp(vm.OpModulo)

	case TokenLParen:
		argc := 0
		if !c.check(TokenRParen) {
			for {
				c.expression()
				argc++
				if argc > maxCallArgs {
					c.errorAt(c.line(), "call has more than %d arguments", maxCallArgs)
				}
				if !c.match(TokenComma) {
					break
				}
			}
		}
		c.expect(TokenRParen, "after call arguments")
		c.emitByte(vm.OpCall, byte(argc))

	case TokenDot:
		c.attrExpr(canAssign)

	case TokenLBracket:
		c.indexExpr(canAssign)
	}
}

// attrExpr compiles `.name` access, assignment, and the append lowering.
func (c *Compiler) attrExpr(canAssign bool) {
	nameTok := c.expect(TokenIdentifier, "after '.'")
	name := nameTok.Literal

	if name == "append" && c.check(TokenLParen) {
		c.advance()
		c.expression()
		c.expect(TokenRParen, "after append() argument")
		c.emitOp(vm.OpAppend)
		return
	}

	switch {
	case canAssign && c.match(TokenAssign):
		c.expression()
		c.emitConstant(vm.OpSetAttr, vm.FromStr(name))
	case canAssign && (c.check(TokenPlusAssign) || c.check(TokenMinusAssign) || c.check(TokenStarAssign)):
		op := c.advance().Type
		c.emitOp(vm.OpDup)
		c.emitConstant(vm.OpGetAttr, vm.FromStr(name))
		c.expression()
		c.emitOp(augmentedOp(op))
		c.emitConstant(vm.OpSetAttr, vm.FromStr(name))
	default:
		c.emitConstant(vm.OpGetAttr, vm.FromStr(name))
	}
}

// indexExpr compiles `[...]`: plain indexing, index assignment, and slicing
// with any of the three components absent.
func (c *Compiler) indexExpr(canAssign bool) {
	// Leading component (or its absence).
	sawExpr := false
	if !c.check(TokenColon) {
		c.expression()
		sawExpr = true
	}

	if sawExpr && c.match(TokenRBracket) {
		if canAssign && c.match(TokenAssign) {
			c.expression()
			c.emitOp(vm.OpSetIndex)
			return
		}
		c.emitOp(vm.OpIndex)
		return
	}

	// Slice: fill in None for the missing components.
	if !sawExpr {
		c.emitOp(vm.OpNil)
	}
	c.expect(TokenColon, "in slice")
	if c.check(TokenColon) || c.check(TokenRBracket) {
		c.emitOp(vm.OpNil)
	} else {
		c.expression()
	}
	if c.match(TokenColon) {
		if c.check(TokenRBracket) {
			c.emitOp(vm.OpNil)
		} else {
			c.expression()
		}
	} else {
		c.emitOp(vm.OpNil)
	}
	c.expect(TokenRBracket, "after slice")
	c.emitOp(vm.OpSlice)
}

func (c *Compiler) listLiteral() {
	count := 0
	for !c.check(TokenRBracket) {
		c.expression()
		count++
		if !c.match(TokenComma) {
			break
		}
	}
	c.expect(TokenRBracket, "after list elements")
	c.emitU16(vm.OpMakeList, uint16(count))
}

func (c *Compiler) dictLiteral() {
	count := 0
	for !c.check(TokenRBrace) {
		c.expression()
		c.expect(TokenColon, "between dict key and value")
		c.expression()
		count++
		if !c.match(TokenComma) {
			break
		}
	}
	c.expect(TokenRBrace, "after dict entries")
	c.emitU16(vm.OpMakeDict, uint16(count))
}
