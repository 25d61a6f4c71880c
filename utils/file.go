// Copyright 2020 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package utils

import (
	"fmt"
	"os"
)

// FileExists returns true if a regular (non-directory) file exists at filename.
func FileExists(filename string) bool {
	f, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !f.IsDir()
}

// DirExists returns true if a directory exists at path.
func DirExists(path string) bool {
	f, err := os.Stat(path)
	if err != nil {
		return false
	}
	return f.IsDir()
}

// FileOrDirExists returns true if anything exists at path.
func FileOrDirExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// CreateFile writes content to a file by path `file`.
// Content is written as is, no trailing newline is added.
func CreateFile(file, content string) error {
	return WriteFileWithMode(file, content, 0o644)
}

// WriteFileWithMode writes content to file and enforces the given mode
// even if the file already existed with a wider one.
func WriteFileWithMode(file, content string, mode os.FileMode) error {
	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Chmod(mode); err != nil {
		return err
	}

	if _, err := f.WriteString(content); err != nil {
		return err
	}

	return nil
}

// CreateDirectory creates a directory by a path with a mode/permission specified by perm.
// If directory exists, the function does not do anything.
// It returns true if the directory was created.
func CreateDirectory(path string, perm os.FileMode) (bool, error) {
	if DirExists(path) {
		return false, nil
	}
	if FileOrDirExists(path) {
		return false, fmt.Errorf("%s exists and is not a directory", path)
	}
	return true, os.MkdirAll(path, perm)
}

// ReadFileContent returns the content of file or an error if it does not exist.
func ReadFileContent(file string) ([]byte, error) {
	// check file exists
	if !FileExists(file) {
		return nil, fmt.Errorf("file %s does not exist", file)
	}

	// read and return file content
	return os.ReadFile(file)
}

// RemoveFileIfExists deletes file, ignoring a missing one.
func RemoveFileIfExists(file string) error {
	err := os.Remove(file)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
