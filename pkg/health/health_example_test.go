// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package health

import (
	"context"
	"fmt"
)

func ExampleBinary() {
	var serving Binary
	fmt.Println(serving.Healthy(context.Background()))

	serving.Set(true)
	fmt.Println(serving.Healthy(context.Background()))
	// Output: false
	// true
}

func ExampleAnd() {
	var serving Binary
	serving.Set(true)

	var certLoaded Binary

	fmt.Println(And(&serving, &certLoaded).Healthy(context.Background()))
	// Output: false
}
