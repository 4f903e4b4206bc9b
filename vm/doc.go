// Package vm implements the Pyrite virtual machine.
//
// This package contains:
//   - Tagged value representation and the heap object model
//   - Chunk and opcode encoding, with a builder and disassembler
//   - The stack-based bytecode interpreter and its call-frame machinery
//   - Closure upvalue capture and class/attribute dispatch
//   - Builtin native functions (super, str, repr, type)
package vm
