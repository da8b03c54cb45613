package hooks

// InstallDefaults installs the default subprogram-name-matched PC hooks of
// spec.md §4.4: the panic/unwind family terminates the path as a failure,
// suppress_path silently drops it, and start_cyclecount/end_cyclecount
// bracket cycle accounting. Grounded directly on hooks.rs's `default()`
// hook table.
//
// start_cyclecount and end_cyclecount both return to the caller by jumping
// to LR, which each intrinsic reads from the per-path Writer it is handed
// when it runs, since Container itself holds no per-path state.
func InstallDefaults(c *Container, subprograms []Subprogram) error {
	failurePatterns := []string{
		`^panic.*$`,
		`^panic_cold_explicit$`,
		`^unwrap_failed$`,
		`^panic_bounds_check$`,
		`^unreachable_unchecked$`,
	}
	for _, pattern := range failurePatterns {
		if err := AddPCHookRegex(c, subprograms, pattern, PCHook{
			Kind:   EndFailure,
			Reason: pattern,
		}); err != nil {
			return err
		}
	}

	if err := AddPCHookRegex(c, subprograms, `^suppress_path$`, PCHook{Kind: Suppress}); err != nil {
		return err
	}

	if err := AddPCHookRegex(c, subprograms, `^start_cyclecount$`, PCHook{
		Kind: Intrinsic,
		Fn: func(w Writer) error {
			w.ResetCycleCount()
			w.SetPC(returnAddress(w))
			return nil
		},
	}); err != nil {
		return err
	}

	if err := AddPCHookRegex(c, subprograms, `^end_cyclecount$`, PCHook{
		Kind: Intrinsic,
		Fn: func(w Writer) error {
			w.SetCountCycles(false)
			w.SetPC(returnAddress(w))
			return nil
		},
	}); err != nil {
		return err
	}

	return nil
}

// returnAddress reads LR directly from r (no register read hook is
// consulted) to resolve where an intrinsic should jump back to; a
// non-constant LR yields 0.
func returnAddress(r Reader) uint64 {
	lr := r.ReadRegister("LR")
	v, ok := lr.GetConstant()
	if !ok {
		return 0
	}
	return v
}
