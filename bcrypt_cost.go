//go:build !race

package rbac

func hashCost() int {
	return 14
}
