package input

import (
	"sync"
	"testing"
)

func TestNew_ShouldCreateControllerWithDefaultState(t *testing.T) {
	controller := New()

	if controller == nil {
		t.Fatal("Expected controller, got nil")
	}
	if controller.buttons != 0 {
		t.Errorf("Expected initial buttons state 0, got %d", controller.buttons)
	}
	if controller.strobe {
		t.Error("Expected initial strobe false, got true")
	}
}

func TestSetButton_ShouldUpdateButtonState(t *testing.T) {
	controller := New()

	buttons := []Button{
		ButtonA, ButtonB, ButtonSelect, ButtonStart,
		ButtonUp, ButtonDown, ButtonLeft, ButtonRight,
	}

	for _, button := range buttons {
		controller.SetButton(button, true)

		if !controller.IsPressed(button) {
			t.Errorf("Button %d should be pressed after SetButton(true)", button)
		}
		if controller.buttons != uint8(button) {
			t.Errorf("Expected buttons state %d, got %d", uint8(button), controller.buttons)
		}

		controller.SetButton(button, false)

		if controller.IsPressed(button) {
			t.Errorf("Button %d should not be pressed after SetButton(false)", button)
		}
	}
}

func TestSetButtons_ShouldMapArrayOrder(t *testing.T) {
	controller := New()
	controller.SetButtons([8]bool{true, false, false, true, false, false, false, true})

	want := uint8(ButtonA | ButtonStart | ButtonRight)
	if controller.buttons != want {
		t.Errorf("Expected buttons 0x%02X, got 0x%02X", want, controller.buttons)
	}
}

func TestRead_StandardSequence_ShouldShiftButtonsOut(t *testing.T) {
	controller := New()
	controller.SetButton(ButtonA, true)
	controller.SetButton(ButtonDown, true)

	controller.Write(1)
	controller.Write(0)

	expected := []uint8{1, 0, 0, 0, 0, 1, 0, 0, 0, 0}
	for i, want := range expected {
		if got := controller.Read(); got != want {
			t.Errorf("Read %d: expected %d, got %d", i, want, got)
		}
	}
}

func TestRead_StrobeActive_ShouldReturnButtonAState(t *testing.T) {
	controller := New()
	controller.SetButton(ButtonA, true)
	controller.SetButton(ButtonB, true)
	controller.Write(1)

	for i := 0; i < 3; i++ {
		if got := controller.Read(); got != 1 {
			t.Errorf("Read %d during strobe: expected 1, got %d", i, got)
		}
	}
}

func TestPoll_ShouldReturnFullState(t *testing.T) {
	controller := New()
	controller.SetButton(ButtonLeft, true)
	controller.SetButton(ButtonB, true)

	if got, want := controller.Poll(), uint8(ButtonLeft|ButtonB); got != want {
		t.Errorf("Poll: expected 0x%02X, got 0x%02X", want, got)
	}
	// A second poll re-latches
	if got, want := controller.Poll(), uint8(ButtonLeft|ButtonB); got != want {
		t.Errorf("second Poll: expected 0x%02X, got 0x%02X", want, got)
	}
}

func TestTrigger_ShouldReportNewPressesOnly(t *testing.T) {
	controller := New()

	controller.SetButton(ButtonA, true)
	if got := controller.Trigger(); got != uint8(ButtonA) {
		t.Errorf("first Trigger: expected A, got 0x%02X", got)
	}
	if got := controller.Trigger(); got != 0 {
		t.Errorf("held button triggered again: 0x%02X", got)
	}

	controller.SetButton(ButtonStart, true)
	if got := controller.Trigger(); got != uint8(ButtonStart) {
		t.Errorf("Trigger after Start: expected Start, got 0x%02X", got)
	}

	controller.SetButton(ButtonA, false)
	controller.Poll()
	controller.SetButton(ButtonA, true)
	if got := controller.Trigger(); got != uint8(ButtonA) {
		t.Errorf("re-press not triggered: 0x%02X", got)
	}
}

func TestReset_ShouldClearAllState(t *testing.T) {
	controller := New()
	controller.SetButton(ButtonA, true)
	controller.Poll()
	controller.Write(1)

	controller.Reset()

	if controller.buttons != 0 || controller.strobe || controller.previous != 0 || controller.bitPosition != 0 {
		t.Errorf("Reset left state behind: %+v", controller)
	}
}

func TestController_ConcurrentAccess(t *testing.T) {
	controller := New()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			controller.SetButton(Button(1<<uint(i%8)), i%2 == 0)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			controller.Poll()
		}
	}()
	wg.Wait()
}
